package events

// HandlerFailed reports a recovered subscriber panic. The kernel
// publishes it on TopicErrors so strategies can observe runtime faults
// that would otherwise only reach the log.
type HandlerFailed struct {
	Header
	Topic  string `json:"topic"`
	Reason string `json:"reason"`
}

// EventTopic implements Event.
func (e HandlerFailed) EventTopic() string { return TopicErrors }
