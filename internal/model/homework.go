package model

// Homework is a single record from the homework_statuses endpoint.
type Homework struct {
	ID              int64  `json:"id"`
	HomeworkName    string `json:"homework_name"`
	Status          string `json:"status"`
	ReviewerComment string `json:"reviewer_comment"`
	LessonName      string `json:"lesson_name"`
	DateUpdated     string `json:"date_updated"`
}

// Known review statuses.
const (
	StatusReviewing = "reviewing"
	StatusApproved  = "approved"
	StatusRejected  = "rejected"
)

// HomeworkVerdicts maps a review status to the verdict sent to the chat.
var HomeworkVerdicts = map[string]string{
	StatusApproved:  "Работа проверена: ревьюеру всё понравилось. Ура!",
	StatusReviewing: "Работа взята на проверку ревьюером.",
	StatusRejected:  "Работа проверена: у ревьюера есть замечания.",
}
