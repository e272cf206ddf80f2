package notify

func strPtr(s string) *string { return &s }
