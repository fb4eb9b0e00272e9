package domain

import "strings"

const (
	// InsufficientContextAnswer is returned when nothing relevant was retrieved.
	InsufficientContextAnswer = "Sağlanan belgelerde bu soruya cevap verebilecek bilgi bulunamadı."
	// NothingToSummarizeText is returned for documents without readable content.
	NothingToSummarizeText = "Özetlenecek içerik bulunamadı."

	greetingReplyTR = "Merhaba! Belgeyle ilgili bir soru sorarsan yüklediğin içerikten yanıtlayabilirim."
	greetingReplyEN = "Hello! Ask me a question about your document and I will answer from its content."
	thanksReplyTR   = "Rica ederim! Belgelerinle ilgili başka bir sorun olursa yardımcı olabilirim."
	thanksReplyEN   = "You're welcome! Let me know if you have another question about your documents."
)

var smalltalkReplies = map[string]string{
	"merhaba":         greetingReplyTR,
	"merhabalar":      greetingReplyTR,
	"selam":           greetingReplyTR,
	"selamlar":        greetingReplyTR,
	"günaydın":        greetingReplyTR,
	"iyi akşamlar":    greetingReplyTR,
	"nasılsın":        greetingReplyTR,
	"naber":           greetingReplyTR,
	"teşekkürler":     thanksReplyTR,
	"teşekkür ederim": thanksReplyTR,
	"sağol":           thanksReplyTR,
	"sağ ol":          thanksReplyTR,
	"çok teşekkürler": thanksReplyTR,

	"hello":             greetingReplyEN,
	"hi":                greetingReplyEN,
	"hey":               greetingReplyEN,
	"good morning":      greetingReplyEN,
	"good evening":      greetingReplyEN,
	"how are you":       greetingReplyEN,
	"thanks":            thanksReplyEN,
	"thank you":         thanksReplyEN,
	"thanks a lot":      thanksReplyEN,
	"thank you so much": thanksReplyEN,
}

// SmalltalkReply matches a question against the fixed greeting and thanks
// vocabulary. Trailing punctuation and case are ignored.
func SmalltalkReply(question string) (string, bool) {
	normalized := strings.ToLower(strings.TrimSpace(question))
	normalized = strings.TrimRight(normalized, "!?.,; ")
	normalized = strings.Join(strings.Fields(normalized), " ")
	if normalized == "" {
		return "", false
	}
	reply, ok := smalltalkReplies[normalized]
	return reply, ok
}
