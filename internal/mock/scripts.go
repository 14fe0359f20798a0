package mock

import "unicode"

// script is a canned assistant response.
type script struct {
	title string
	model string
	text  string

	// restartAt regenerates the answer from scratch once this many tokens
	// have been emitted. Zero never restarts.
	restartAt int
	// failAt ends the stream as errored after this many tokens. Zero never
	// fails.
	failAt int
}

var scripts = []script{
	{
		title: "explain-debounce",
		model: "mock-large",
		text: "## Debouncing\n\n" +
			"A debouncer turns a *noisy* boolean into a stable one. " +
			"When the signal goes **true** the output follows at once. " +
			"When it goes **false** the output waits out a short grace period, " +
			"and only drops if the signal stays false for the whole window.\n\n" +
			"- Rising edges are immediate\n" +
			"- Falling edges are delayed\n" +
			"- Flicker inside the grace window is invisible\n",
	},
	{
		title: "haiku",
		model: "mock-small",
		text: "Tokens trickle in,\n" +
			"a cursor paces the words,\n" +
			"calm at its own speed.\n",
		restartAt: 6,
	},
	{
		title: "go-snippet",
		model: "mock-large",
		text: "Here is a small example:\n\n" +
			"```go\n" +
			"t := time.AfterFunc(100*time.Millisecond, func() {\n" +
			"\tfmt.Println(\"tick\")\n" +
			"})\n" +
			"defer t.Stop()\n" +
			"```\n\n" +
			"Stopping the timer before it fires cancels the callback.\n",
	},
	{
		title: "flaky-upstream",
		model: "mock-small",
		text: "Fetching the latest figures from the upstream service. " +
			"This usually takes a moment while the provider warms up its cache " +
			"and streams the results back.\n",
		failAt: 14,
	},
}

// tokenize splits text into word tokens, each carrying its trailing
// whitespace so that concatenating the tokens restores the text exactly.
func tokenize(text string) []string {
	var tokens []string
	runes := []rune(text)
	start := 0
	for i := 0; i < len(runes); i++ {
		if !unicode.IsSpace(runes[i]) {
			continue
		}
		for i+1 < len(runes) && unicode.IsSpace(runes[i+1]) {
			i++
		}
		tokens = append(tokens, string(runes[start:i+1]))
		start = i + 1
	}
	if start < len(runes) {
		tokens = append(tokens, string(runes[start:]))
	}
	return tokens
}
