package notifier

import (
	"fmt"

	"HomeworkSentinel/internal/model"
)

// EmptyListMessage is sent when the API reports no homework in the window.
const EmptyListMessage = "Сервер вернул пустой список"

// ParseStatus formats the review status of a homework into a chat message.
func ParseStatus(hw model.Homework) (string, error) {
	if hw.HomeworkName == "" {
		return "", fmt.Errorf("%w: %q", model.ErrMissingKey, "homework_name")
	}
	verdict, ok := model.HomeworkVerdicts[hw.Status]
	if !ok {
		return "", fmt.Errorf("%w: %q for %q", model.ErrUnknownStatus, hw.Status, hw.HomeworkName)
	}
	return fmt.Sprintf("Changed review status for \"%s\": %s", hw.HomeworkName, verdict), nil
}

// FormatAlert formats a malfunction report for the operator.
func FormatAlert(err error) string {
	return fmt.Sprintf("Сбой в работе программы: %v", err)
}
