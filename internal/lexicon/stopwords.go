package lexicon

var stopWords = func() map[string]struct{} {
	words := []string{
		// ru
		"и", "в", "во", "не", "что", "он", "на", "я", "с", "со", "как", "а", "то", "все", "она", "так",
		"его", "но", "да", "ты", "к", "у", "же", "вы", "за", "бы", "по", "только", "ее", "мне", "было",
		"вот", "от", "меня", "еще", "нет", "о", "из", "ему", "теперь", "когда", "даже", "ну", "вдруг",
		"ли", "если", "уже", "или", "ни", "быть", "был", "него", "до", "вас", "нибудь", "опять", "уж",
		"вам", "ведь", "там", "потом", "себя", "ничего", "ей", "может", "они", "тут", "где", "есть",
		"надо", "ней", "для", "мы", "тебя", "их", "чем", "была", "сам", "чтоб", "без", "будто", "чего",
		"раз", "тоже", "себе", "под", "будет", "ж", "тогда", "кто", "этот", "того", "потому", "этого",
		"какой", "совсем", "ним", "здесь", "этом", "один", "почти", "мой", "тем", "чтобы", "нее",
		"сейчас", "были", "куда", "зачем", "всех", "никогда", "можно", "при", "наконец", "два", "об",
		"другой", "хоть", "после", "над", "больше", "тот", "через", "эти", "нас", "про", "всего",
		"них", "какая", "много", "разве", "три", "эту", "моя", "впрочем", "хорошо", "свою", "этой",
		"перед", "иногда", "лучше", "чуть", "том", "нельзя", "такой", "им", "более", "всегда",
		"конечно", "всю", "между", "это", "просто", "очень", "тебе", "меня", "тоже", "вообще",
		// en
		"the", "and", "for", "are", "but", "not", "you", "all", "any", "can", "had", "her", "was",
		"one", "our", "out", "has", "him", "his", "how", "its", "may", "new", "now", "old", "see",
		"two", "who", "did", "get", "let", "say", "she", "too", "use", "that", "with", "have", "this",
		"will", "your", "from", "they", "been", "were", "what", "when", "there", "which", "would",
		"about", "their", "just", "like", "then", "than", "them", "into", "some",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}()

func isStopWord(w string) bool {
	_, ok := stopWords[w]
	return ok
}
