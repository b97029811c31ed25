package wrap

// A Summarizer turns raw call arguments and outcomes into the request and
// response summaries stored in captured records. Integrations supply their
// own to capture what is meaningful for their API.
type Summarizer interface {
	// SummarizeRequest summarizes the call arguments. Trailing callbacks
	// are stripped before the arguments reach the summarizer.
	SummarizeRequest(args []interface{}) interface{}

	// SummarizeResponse summarizes a successful outcome.
	SummarizeResponse(result interface{}) interface{}
}

// NewKeySummarizer returns the default summarizer for data-store clients: it
// records the first positional argument as the request key and the outcome
// value as-is.
func NewKeySummarizer() Summarizer {
	return keySummarizer{}
}

type keySummarizer struct{}

func (s keySummarizer) SummarizeRequest(args []interface{}) interface{} {
	if len(args) == 0 {
		return nil
	}

	return map[string]interface{}{"key": args[0]}
}

func (s keySummarizer) SummarizeResponse(result interface{}) interface{} {
	return result
}
