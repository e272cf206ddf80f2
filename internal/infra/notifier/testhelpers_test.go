package notifier

func strPtr(s string) *string { return &s }
