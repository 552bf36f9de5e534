package replies

// DefaultTable returns the built-in reply texts.
func DefaultTable() Table {
	return Table{
		OwnerHelp: "👨‍💻 Hello, owner!\n" +
			"✅ Two-way forwarding is on: user messages are copied here as they arrive.\n" +
			"📌 To answer a user, reply to the forwarded message.",
		Welcome: "🎉 Welcome to the relay bot!\n" +
			"Send a message and it will reach the owner, who will reply as soon as possible.\n" +
			"Send \"help\" for details.",
		DefaultText: "🤖 Got your message!\n" +
			"The owner will read it and reply soon, please be patient.\n" +
			"(send \"help\" for the usage guide)",
		DefaultMedia: "📥 Got your media message (photo/video/file)!\n" +
			"It has been forwarded to the owner, you will be notified of the reply.",
		Keywords: []Rule{
			{
				Triggers: []string{"你好", "hi", "hello", "哈喽", "嗨"},
				Reply: "👋 Hi there! I'm the owner's two-way forwarding bot.\n" +
					"Send text, photos, files or anything else and I will pass it on right away. " +
					"When the owner replies you will get the answer here.",
			},
			{
				Triggers: []string{"帮助", "help", "使用方法", "怎么用", "how to use"},
				Reply: "📋 How to use this bot:\n" +
					"1. Send any message → it is forwarded to the owner\n" +
					"2. The owner replies → you receive the reply here\n" +
					"3. Supported: text, photos, videos, files, locations\n" +
					"4. Send \"status\" to check the bot\n" +
					"5. Send \"contact\" for the owner's public contact",
			},
			{
				Triggers: []string{"谢谢", "thanks", "感谢", "多谢", "thank you"},
				Reply:    "😊 You're welcome! Passing messages along is my job.\nAnything else, just send it.",
			},
			{
				Triggers: []string{"状态", "运行状态", "是否在线", "status"},
				Reply: "🟢 Bot status: running\n" +
					"📡 Linked to the owner's account\n" +
					"💬 Supported: text, photos, videos, files, locations",
			},
			{
				Triggers: []string{"联系主人", "主人联系方式", "怎么找主人", "contact"},
				Reply: "📞 Owner contact:\n" +
					"- The owner usually answers within 24 hours; for urgent matters send your message again.",
			},
			{
				Triggers: []string{"再见", "拜拜", "byebye", "bye"},
				Reply:    "👋 Bye! Come back any time you need to reach the owner.",
			},
		},
	}
}
