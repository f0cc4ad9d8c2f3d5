package mail

type DeadLetterAlertData struct {
	LocationName string
	Email        string
	FirstName    string
	LastName     string
	Reason       string
	Attempts     int
	FirstFailed  string
}

type EmailSender struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}
