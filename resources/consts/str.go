package consts

// Translation keys of the longer user-facing texts; see resources/i18n.yaml.
const (
	StrHello = "Hi, my name is %s!"
	StrIntro = "I'm a chat bot with a few personalities. I chat in private, " +
		"sometimes butt into group conversations, run quizzes and adventures, " +
		"remember birthdays and draw pictures."
	StrHelp = "Commands:\n" +
		"/persona [id] - show or switch my personality\n" +
		"/model [provider] - show or switch the language model provider\n" +
		"/settings - chat settings; /settings random|spam on|off\n" +
		"/chance <reaction|reply|voice|image|trigger> <0..1> - random reaction probability\n" +
		"/quiz [topic] - a quiz question, /quiztop - leaderboard\n" +
		"/birthday DD.MM - remember your birthday, /birthdays - list\n" +
		"/dnd [setting] - start an adventure, /act <action>, /dndend\n" +
		"/pic <prompt> - draw a picture, /distort - mangle a photo, /say <text> - voice\n" +
		"/lexicon - vocabulary stats, /search, /smartsearch <query>, /summary, /stats\n" +
		"/reset - forget our private conversation"
	StrOutro = "If you want to restart the conversation from " +
		"scratch, just type /reset and my recent memories will fade away."
	StrTimeout = "I'm sorry, but this takes an unacceptable " +
		"duration of time to answer. Request aborted."
	StrNoAnswer     = "Sorry, I don't have an answer."
	StrRequestError = "Unfortunately, there was an error during the request. " +
		"Please try again later."
	StrAdminOnly = "Only bot admins can do that."
)
