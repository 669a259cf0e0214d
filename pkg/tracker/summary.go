package tracker

// summarize derives aggregate metrics from the session's event sequences.
// Called fresh at every session-event emission; never cached.
func summarize(s *SessionState, timeSpentMs int64) *Summary {
	sum := &Summary{
		TotalInteractions: s.TotalInteractions,
		TimeSpentMs:       timeSpentMs,
	}

	var answered int
	var timed int
	var timedTotal int64

	for _, q := range s.Questions {
		sum.HintsUsedTotal += q.HintsUsed

		switch q.EventType {
		case QuestionAnswered:
			answered++
			if q.IsCorrect != nil && *q.IsCorrect {
				sum.QuestionsCorrect++
			} else {
				sum.QuestionsIncorrect++
			}
			if q.TimeToAnswerMs != nil {
				timed++
				timedTotal += *q.TimeToAnswerMs
			}
		case QuestionSkipped:
			sum.QuestionsSkipped++
		}
	}

	sum.QuestionsAttempted = answered + sum.QuestionsSkipped

	if timed > 0 {
		avg := float64(timedTotal) / float64(timed)
		sum.AverageTimePerQuestionMs = &avg
	}
	if answered > 0 {
		rate := float64(sum.QuestionsCorrect) / float64(answered)
		sum.AccuracyRate = &rate
	}

	return sum
}
