package moderation

import (
	"log/slog"
	"testing"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

const replacementChar = '*'

// The dictionary avoids short words that would collide inside longer ones ("he" inside "the").
func TestModerator_Censor(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	dictionary := []string{"idiota", "spam", "mushroom"}
	mod, err := NewModerator(dictionary, replacementChar, log)
	req.NoError(err)

	tests := []struct {
		name     string
		input    string
		expected string
		words    []string
	}{
		{
			name:     "Single word keeps surrounding spaces",
			input:    "you are an idiota today",
			expected: "you are an ****** today",
			words:    []string{"idiota"},
		},
		{
			name:     "Repeated word",
			input:    "spam spam spam",
			expected: "**** **** ****",
			words:    []string{"spam", "spam", "spam"},
		},
		{
			name:     "Leet speak split by punctuation",
			input:    "buy $.p.4.m now",
			expected: "buy ******* now",
			words:    []string{"spam"},
		},
		{
			name:     "Uppercase and dashes",
			input:    "S-P-A-M and MUSHROOM",
			expected: "******* and ********",
			words:    []string{"spam", "mushroom"},
		},
		{
			name:     "Accented text around a match",
			input:    "Olá, não é spam",
			expected: "Olá, não é ****",
			words:    []string{"spam"},
		},
		{
			name:     "Trailing punctuation is kept",
			input:    "pure spam.",
			expected: "pure ****.",
			words:    []string{"spam"},
		},
		{
			name:     "Nothing to censor",
			input:    "entra na sala...",
			expected: "entra na sala...",
			words:    nil,
		},
		{
			name:     "Empty string",
			input:    "",
			expected: "",
			words:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content, words := mod.Censor(tt.input)
			req.Equal(tt.expected, content, "test=%s,", tt.name)
			req.Equal(tt.words, words, "expected=%s,words=%s", tt.expected, words)
		})
	}
}

func TestModerator_NoiseOnlyDictionary(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	mod, err := NewModerator([]string{"...", ",,,", ""}, replacementChar, log)
	req.NoError(err)

	content, words := mod.Censor("Hello ... spam")
	req.Equal("Hello ... spam", content)
	req.Nil(words)
}

func TestModerator_MixedDictionary(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	mod, err := NewModerator([]string{"...", "", "spam"}, replacementChar, log)
	req.NoError(err)

	content, words := mod.Censor("no spam here ...")
	req.Equal("no **** here ...", content)
	req.Equal([]string{"spam"}, words)
}

func TestDetectLanguage(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{name: "Portuguese sentence", text: "Olá a todos, acabei de entrar na sala e estou muito feliz por estar aqui com vocês", want: "pt"},
		{name: "English sentence", text: "The quick brown fox jumps over the lazy dog while everyone in the room watches", want: "en"},
		{name: "Short Japanese message", text: "こんにちは", want: "ja"},
		{name: "Short Korean message", text: "안녕하세요", want: "ko"},
		{name: "Empty", text: "", want: ""},
		{name: "Blank", text: "   ", want: ""},
		{name: "No letters", text: "12345 !!!", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, DetectLanguage(tt.text))
		})
	}
}

func TestDetectLanguage_ShortChatMessageIsTagged(t *testing.T) {
	req := require.New(t)

	// Chat-length text is below whatlanggo's reliability bar but still gets its best guess
	req.NotEmpty(DetectLanguage("hello everyone"))
	req.Equal("ja", DetectLanguage("またね"))
}
