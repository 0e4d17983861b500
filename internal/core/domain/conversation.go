package domain

// ExpectationKind names the input a chat is expected to send next. Each chat
// holds at most one expectation; setting a new one overwrites the previous.
type ExpectationKind string

const (
	ExpectConnectionToken ExpectationKind = "connection_token"
	ExpectFundAmount      ExpectationKind = "fund_amount"
)
