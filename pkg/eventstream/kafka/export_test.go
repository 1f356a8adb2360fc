package kafka

// NewPublisherWithWriter exposes writer injection to tests.
var NewPublisherWithWriter = newPublisher
