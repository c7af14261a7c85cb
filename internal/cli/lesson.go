package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tutorlab/tutor-rag/internal/orchestrator"
	"github.com/tutorlab/tutor-rag/internal/registry"
	"github.com/tutorlab/tutor-rag/pkg/types"
)

var (
	lessonForce    bool
	lessonStream   bool
	lessonProgress bool
	lessonJSON     bool
	lessonCloud    string
)

var lessonCmd = &cobra.Command{
	Use:   "lesson [course-id] [chapter]",
	Short: "Print the lesson for a chapter",
	Long: `Prints the stored lesson for a chapter, generating it from the closest
chunks when none exists. --force regenerates a stored lesson. --stream
prints the lesson as it is generated; interrupting it stores nothing.`,
	Args: cobra.ExactArgs(2),
	RunE: runLesson,
}

var lessonNotesCmd = &cobra.Command{
	Use:   "notes [course-id] [chapter] [text]",
	Short: "Replace the notes attached to a lesson",
	Long: `Replaces the text notes of a stored lesson. --cloud replaces its sticky
notes with the JSON array in the given file ([] removes them all).`,
	Args: cobra.RangeArgs(2, 3),
	RunE: runLessonNotes,
}

var warmCmd = &cobra.Command{
	Use:   "warm [course-id]",
	Short: "Generate missing lessons for every chapter of a course",
	Args:  cobra.ExactArgs(1),
	RunE:  runWarm,
}

func init() {
	lessonCmd.Flags().BoolVarP(&lessonForce, "force", "f", false, "regenerate even when a lesson is stored")
	lessonCmd.Flags().BoolVar(&lessonStream, "stream", false, "print the lesson while it is generated")
	lessonCmd.Flags().BoolVar(&lessonProgress, "progress", false, "report estimated progress on stderr while streaming")
	lessonCmd.Flags().BoolVar(&lessonJSON, "json", false, "output the lesson as JSON")
	lessonNotesCmd.Flags().StringVar(&lessonCloud, "cloud", "", "JSON file holding the sticky notes")
	lessonCmd.AddCommand(lessonNotesCmd)
	rootCmd.AddCommand(lessonCmd, warmCmd)
}

func runLesson(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, closeApp, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer closeApp()

	req := orchestrator.LessonRequest{CourseID: args[0], ChapterTitle: args[1], ForceRegenerate: lessonForce}

	if lessonStream && !lessonJSON {
		stream, err := a.Orchestrator.StreamLesson(ctx, req)
		if err != nil {
			return err
		}
		defer stream.Close()
		for delta := range stream.Deltas() {
			cmd.Print(delta)
			if lessonProgress {
				fmt.Fprintf(cmd.ErrOrStderr(), "\r%3.0f%%", stream.Progress()*100)
			}
		}
		cmd.Println()
		res, err := stream.Wait()
		if err != nil {
			return err
		}
		if res.Fallback {
			cmd.PrintErrln("lesson generation failed; nothing was stored")
		}
		return nil
	}

	res, err := a.Orchestrator.GenerateLesson(ctx, req)
	if err != nil {
		return err
	}
	if lessonJSON {
		return outputJSON(cmd, res)
	}
	cmd.Println(res.Lesson.Content)
	if res.Fallback {
		cmd.PrintErrln("lesson generation failed; nothing was stored")
	}
	return nil
}

func runLessonNotes(cmd *cobra.Command, args []string) error {
	a, closeApp, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer closeApp()

	var upd registry.LessonUpdate
	if len(args) == 3 {
		notes := args[2]
		upd.Notes = &notes
	}
	if lessonCloud != "" {
		cloud, err := readCloudNotes(lessonCloud)
		if err != nil {
			return err
		}
		upd.CloudNotes = &cloud
	}
	if upd.Empty() {
		return errors.New("nothing to update: pass notes text or --cloud")
	}

	lesson, err := a.Orchestrator.UpdateLesson(args[0], args[1], upd)
	if err != nil {
		return err
	}
	cmd.Printf("Updated notes for %q (%d sticky notes)\n", lesson.Title, len(lesson.CloudNotes))
	return nil
}

func readCloudNotes(path string) ([]types.CloudNote, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sticky notes: %w", err)
	}
	notes := make([]types.CloudNote, 0)
	if err := json.Unmarshal(data, &notes); err != nil {
		return nil, fmt.Errorf("invalid sticky notes file %s: %w", path, err)
	}
	return notes, nil
}

func runWarm(cmd *cobra.Command, args []string) error {
	a, closeApp, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer closeApp()

	summary, err := a.Orchestrator.WarmCourse(cmd.Context(), args[0])
	if summary != nil {
		cmd.Printf("%d chapters: %d generated, %d already stored, %d failed\n",
			summary.Chapters, summary.Generated, summary.Cached, summary.Fallbacks)
	}
	return err
}
