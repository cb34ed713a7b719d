package bus

import "strings"

// Match reports whether an AMQP topic pattern matches a routing key.
// Pattern words are separated by dots; "*" matches exactly one word and
// "#" matches zero or more words.
func Match(pattern, topic string) bool {
	return matchWords(strings.Split(pattern, "."), strings.Split(topic, "."))
}

func matchWords(pattern, topic []string) bool {
	if len(pattern) == 0 {
		return len(topic) == 0
	}

	switch pattern[0] {
	case "#":
		// "#" may swallow any number of words, including none.
		for i := 0; i <= len(topic); i++ {
			if matchWords(pattern[1:], topic[i:]) {
				return true
			}
		}
		return false
	case "*":
		return len(topic) > 0 && matchWords(pattern[1:], topic[1:])
	default:
		return len(topic) > 0 && pattern[0] == topic[0] && matchWords(pattern[1:], topic[1:])
	}
}
