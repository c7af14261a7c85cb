package cli

import (
	"github.com/spf13/cobra"

	"github.com/tutorlab/tutor-rag/internal/orchestrator"
	"github.com/tutorlab/tutor-rag/pkg/types"
)

var (
	quizDifficulty string
	quizReveal     bool
	quizJSON       bool
)

var quizCmd = &cobra.Command{
	Use:   "quiz [course-id] [chapter]",
	Short: "Generate a multiple-choice quiz",
	Long: `Generates a 10-question multiple-choice quiz for a chapter. Without a
chapter (or with GENERAL) the quiz covers the whole course.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runQuiz,
}

func init() {
	quizCmd.Flags().StringVarP(&quizDifficulty, "difficulty", "d", orchestrator.DefaultDifficulty, "question difficulty (easy, medium, hard)")
	quizCmd.Flags().BoolVar(&quizReveal, "reveal", false, "mark the correct option of each question")
	quizCmd.Flags().BoolVar(&quizJSON, "json", false, "output the quiz as JSON")
	rootCmd.AddCommand(quizCmd)
}

func runQuiz(cmd *cobra.Command, args []string) error {
	chapter := types.GeneralChapter
	if len(args) == 2 {
		chapter = args[1]
	}

	a, closeApp, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer closeApp()

	test, err := a.Orchestrator.GenerateQuiz(cmd.Context(), orchestrator.QuizRequest{
		CourseID:     args[0],
		ChapterTitle: chapter,
		Difficulty:   quizDifficulty,
	})
	if err != nil {
		return err
	}
	if quizJSON {
		return outputJSON(cmd, test)
	}

	cmd.Printf("Quiz %s (%s, %s)\n\n", test.ID, test.ChapterTitle, test.Difficulty)
	for i, q := range test.Questions {
		cmd.Printf("%d. %s\n", i+1, q.Text)
		for j, opt := range q.Options {
			marker := " "
			if quizReveal && j == q.CorrectAnswer {
				marker = "*"
			}
			cmd.Printf("  %s %c) %s\n", marker, 'a'+rune(j), opt)
		}
		cmd.Println()
	}
	return nil
}
