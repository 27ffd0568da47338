package models

// User is one row of the users table. ID is the internal numeric id assigned
// on first contact; NotifyTime is empty until the user runs /settime.
type User struct {
	ID         int64  `dynamodbav:"id" json:"id"`
	LineUserID string `dynamodbav:"lineUserId" json:"lineUserId"`
	NotifyTime string `dynamodbav:"notifyTime,omitempty" json:"notifyTime,omitempty"` // "HH:MM"
	CreatedAt  string `dynamodbav:"createdAt" json:"createdAt"`                       // ISO timestamp
}

// TrackedStock links a user to one watched symbol.
type TrackedStock struct {
	UserID    int64  `dynamodbav:"userId" json:"userId"`
	Symbol    string `dynamodbav:"symbol" json:"symbol"`
	CreatedAt string `dynamodbav:"createdAt" json:"createdAt"` // ISO timestamp
}
