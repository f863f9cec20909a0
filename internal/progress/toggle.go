package progress

// TopicSizer reports how many subtopics a topic has. *curriculum.Catalog
// satisfies it.
type TopicSizer interface {
	SubtopicCount(subjectID, topicID string) (int, bool)
}

// Weight returns the share of a syllabus day carried by one subtopic of the
// topic: 1/N for N subtopics. Unknown topics and topics without subtopics
// count as a single unit of weight 1.
func Weight(sizer TopicSizer, subjectID, topicID string) float64 {
	if sizer == nil {
		return 1
	}
	n, ok := sizer.SubtopicCount(subjectID, topicID)
	if !ok || n <= 0 {
		return 1
	}
	return 1 / float64(n)
}

// Toggle flips the done flag of ref and attributes the change to today's
// ledger entry. It returns the new state and leaves the input untouched.
//
// Checking adds the subtopic's weight to today's count, creating the entry
// if needed. Unchecking subtracts it, clamped at zero; a zero entry is kept
// so the date still reads as touched. Unchecking on a date with no entry
// leaves the ledger alone.
func Toggle(sizer TopicSizer, state State, ref Ref, today Date) State {
	key := ref.Key()
	checked := !state.Progress[key]

	next := state.Clone()
	next.Progress[key] = checked

	weight := Weight(sizer, ref.SubjectID, ref.TopicID)

	if i, ok := next.Activity.Find(today); ok {
		count := next.Activity[i].Count
		if checked {
			count += weight
		} else {
			count = max(0, count-weight)
		}
		next.Activity[i].Count = count
	} else if checked {
		next.Activity = append(Ledger{{Date: today, Count: weight}}, next.Activity...)
	}

	return next
}
