package extraction

// metricResult is the JSON shape the model returns for metric extraction.
type metricResult struct {
	Metric      string `json:"metric"`
	Value       string `json:"value"`
	Found       bool   `json:"found"`
	Explanation string `json:"explanation"`
}

type riskItem struct {
	Risk   string `json:"risk"`
	Detail string `json:"detail"`
}

type riskResult struct {
	Risks []riskItem `json:"risks"`
}

type sentimentResult struct {
	Sentiment   string   `json:"sentiment"`
	Explanation string   `json:"explanation"`
	Confidence  *float64 `json:"confidence"`
}

type summaryResult struct {
	Summary string `json:"summary"`
}
