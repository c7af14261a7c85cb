package cli

import (
	"github.com/spf13/cobra"
)

var coursesJSON bool

var coursesCmd = &cobra.Command{
	Use:   "courses",
	Short: "List ingested courses",
	Args:  cobra.NoArgs,
	RunE:  runCoursesList,
}

var coursesShowCmd = &cobra.Command{
	Use:   "show [course-id]",
	Short: "Show a course outline and which chapters have lessons",
	Args:  cobra.ExactArgs(1),
	RunE:  runCoursesShow,
}

var coursesDeleteCmd = &cobra.Command{
	Use:   "delete [course-id]",
	Short: "Delete a course and its lessons",
	Args:  cobra.ExactArgs(1),
	RunE:  runCoursesDelete,
}

func init() {
	coursesCmd.PersistentFlags().BoolVar(&coursesJSON, "json", false, "output as JSON")
	coursesCmd.AddCommand(coursesShowCmd, coursesDeleteCmd)
	rootCmd.AddCommand(coursesCmd)
}

func runCoursesList(cmd *cobra.Command, _ []string) error {
	a, closeApp, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer closeApp()

	courses := a.Registry.ListCourses()
	if coursesJSON {
		return outputJSON(cmd, courses)
	}
	if len(courses) == 0 {
		cmd.Println("No courses yet. Run \"tutorrag ingest\" first.")
		return nil
	}
	for _, c := range courses {
		cmd.Printf("%s  %s (%d chapters, from %s)\n", c.ID, c.Title, len(c.Chapters), c.SourceFile)
	}
	return nil
}

func runCoursesShow(cmd *cobra.Command, args []string) error {
	a, closeApp, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer closeApp()

	course, err := a.Registry.GetCourse(args[0])
	if err != nil {
		return err
	}
	lessons := a.Registry.ListLessons(course.ID)
	if coursesJSON {
		return outputJSON(cmd, map[string]interface{}{"course": course, "lessons": lessons})
	}

	stored := make(map[string]bool, len(lessons))
	for _, l := range lessons {
		stored[l.ChapterTitle] = true
	}
	cmd.Printf("%s\n%s\n\n", course.Title, course.Description)
	for i, ch := range course.Chapters {
		marker := " "
		if stored[ch.Title] {
			marker = "*"
		}
		cmd.Printf("%s %2d. %s\n", marker, i+1, ch.Title)
	}
	cmd.Println("\n* lesson stored")
	return nil
}

func runCoursesDelete(cmd *cobra.Command, args []string) error {
	a, closeApp, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer closeApp()

	if err := a.Registry.DeleteCourse(args[0]); err != nil {
		return err
	}
	cmd.Printf("Deleted course %s\n", args[0])
	return nil
}
