package cli

import "lms-test-service/internal/domain"

// sampleTests is the catalog served when no Postgres is configured.
func sampleTests() map[string]domain.TestDefinition {
	general := []domain.Question{
		{ID: "q1", Prompt: "What is the capital of France?", Options: []string{"London", "Berlin", "Paris", "Madrid"}, CorrectOption: 2},
		{ID: "q2", Prompt: "Which planet is known as the Red Planet?", Options: []string{"Venus", "Mars", "Jupiter", "Saturn"}, CorrectOption: 1},
		{ID: "q3", Prompt: "What is 2 + 2?", Options: []string{"3", "4", "5", "6"}, CorrectOption: 1},
		{ID: "q4", Prompt: `Who wrote "Romeo and Juliet"?`, Options: []string{"Charles Dickens", "William Shakespeare", "Jane Austen", "Mark Twain"}, CorrectOption: 1},
		{ID: "q5", Prompt: "What is the largest ocean on Earth?", Options: []string{"Atlantic Ocean", "Indian Ocean", "Arctic Ocean", "Pacific Ocean"}, CorrectOption: 3},
	}
	return map[string]domain.TestDefinition{
		"course-1-test-1": {
			ID:              "course-1-test-1",
			CourseID:        "course-1",
			Title:           "General Test-01",
			DurationSeconds: 600,
			Marks:           20,
			Questions:       general,
		},
		"course-1-test-2": {
			ID:              "course-1-test-2",
			CourseID:        "course-1",
			Title:           "General Test-02",
			DurationSeconds: 300,
			Marks:           12,
			Questions:       general[:3],
		},
	}
}
