package workflow

// Отображаемые статусы оценки.
const (
	DisplayInProgress = "in_progress"
	DisplayComplete   = "complete"
	DisplayPassed     = "passed"
	DisplayDeclined   = "declined"
)

// DisplayStatus переводит сырой результат этапа в статус для пользователя.
// Один и тот же код pass значит «отзыв получен» для feedback и «прошёл» для остальных типов.
func DisplayStatus(result string, evaluationType string) string {
	switch Result(result) {
	case ResultPass:
		if EvaluationType(evaluationType) == EvaluationFeedback {
			return DisplayComplete
		}
		return DisplayPassed
	case ResultFail:
		return DisplayDeclined
	case ResultInProgress, "":
		return DisplayInProgress
	}
	return result
}

// RawStatus: сырой код результата текущего этапа; пока результата нет, этап in_progress.
func (it Item) RawStatus() Result {
	s, ok := it.CurrentStage()
	if !ok || s.Result == "" {
		return ResultInProgress
	}
	return s.Result
}
