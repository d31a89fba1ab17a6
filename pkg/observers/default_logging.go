package observers

// NewDefaultLoggingObserver creates a logging observer with default settings (LogInfo level)
func NewDefaultLoggingObserver[ID comparable]() *LoggingObserver[ID] {
	return NewLoggingObserver[ID](nil, LogInfo, "statechart")
}
