package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/noah-isme/attendance-api/internal/models"
	"github.com/noah-isme/attendance-api/pkg/textutil"
)

func (a *app) metricsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "metrics",
		Short: "Show dashboard metrics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			snapshot, err := a.metrics.GetMetrics(cmd.Context())
			if err != nil {
				return err
			}
			if a.jsonOutput() {
				return printJSON(cmd.OutOrStdout(), snapshot)
			}
			return printMetrics(cmd.OutOrStdout(), *snapshot)
		},
	}
}

func (a *app) studentsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "students",
		Short: "Browse and edit the roster",
	}
	cmd.AddCommand(a.studentsListCmd(), a.studentsUpdateCmd())
	return cmd
}

func (a *app) studentsListCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List students with their total attendance",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			students, err := a.students.GetStudents(ctx)
			if err != nil {
				return err
			}
			if name != "" {
				students = filterByName(students, name)
			}

			ids := make([]string, 0, len(students))
			for _, s := range students {
				ids = append(ids, s.ID)
			}
			totals, err := a.attendance.GetTotalAttendances(ctx, ids)
			if err != nil {
				return err
			}

			if a.jsonOutput() {
				type row struct {
					models.Student
					TotalAttendance int `json:"totalAttendance"`
				}
				out := make([]row, 0, len(students))
				for _, s := range students {
					out = append(out, row{Student: s, TotalAttendance: totals[s.ID]})
				}
				return printJSON(cmd.OutOrStdout(), out)
			}
			rows := make([][]string, 0, len(students))
			for _, s := range students {
				rows = append(rows, []string{s.ID, s.Name, fmt.Sprint(s.Age), s.Gender, s.PhoneNumber, fmt.Sprint(totals[s.ID])})
			}
			return printTable(cmd.OutOrStdout(), []string{"ID", "NAME", "AGE", "GENDER", "PHONE", "ATTENDANCE"}, rows)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Only show the student with this name (word order and case ignored)")
	return cmd
}

func filterByName(students []models.Student, name string) []models.Student {
	want := textutil.NormalizeName(name)
	out := make([]models.Student, 0, 1)
	for _, s := range students {
		if textutil.NormalizeName(s.Name) == want {
			out = append(out, s)
		}
	}
	return out
}

func (a *app) studentsUpdateCmd() *cobra.Command {
	var (
		name, gender, phone string
		age                 int
	)
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Edit a student",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var req models.UpdateStudentRequest
			flags := cmd.Flags()
			if flags.Changed("name") {
				req.Name = &name
			}
			if flags.Changed("age") {
				req.Age = &age
			}
			if flags.Changed("gender") {
				req.Gender = &gender
			}
			if flags.Changed("phone") {
				req.PhoneNumber = &phone
			}
			if req == (models.UpdateStudentRequest{}) {
				return errors.New("nothing to update: pass --name, --age, --gender or --phone")
			}

			student, err := a.students.UpdateStudent(cmd.Context(), args[0], req)
			if err != nil {
				return err
			}
			if a.jsonOutput() {
				return printJSON(cmd.OutOrStdout(), student)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated %s (%s).\n", student.Name, student.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "New name")
	cmd.Flags().IntVar(&age, "age", 0, "New age")
	cmd.Flags().StringVar(&gender, "gender", "", "New gender")
	cmd.Flags().StringVar(&phone, "phone", "", "New phone number")
	return cmd
}

func (a *app) attendanceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "attendance",
		Short: "Inspect and correct check-ins",
	}
	cmd.AddCommand(a.dailyCmd(), a.removeCmd(), a.totalsCmd(), a.historyCmd())
	return cmd
}

func (a *app) dailyCmd() *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "daily",
		Short: "List the check-ins of a day",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if date == "" {
				date = a.today()
			}
			entries, err := a.attendance.GetDailyAttendance(cmd.Context(), date)
			if err != nil {
				return err
			}
			if a.jsonOutput() {
				return printJSON(cmd.OutOrStdout(), entries)
			}
			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, []string{e.StudentID, e.StudentName})
			}
			return printTable(cmd.OutOrStdout(), []string{"STUDENT ID", "NAME"}, rows)
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "Day to show (YYYY-MM-DD, default today)")
	return cmd
}

func (a *app) removeCmd() *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "remove <student-id>",
		Short: "Delete a student's check-in for a day",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if date == "" {
				date = a.today()
			}
			if err := a.attendance.RemoveAttendance(cmd.Context(), args[0], date); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed check-in of %s on %s.\n", args[0], date)
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "Day of the check-in (YYYY-MM-DD, default today)")
	return cmd
}

func (a *app) totalsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "totals <student-id>...",
		Short: "Show total check-ins per student",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var ids []string
			for _, arg := range args {
				ids = append(ids, strings.Split(arg, ",")...)
			}
			totals, err := a.attendance.GetTotalAttendances(cmd.Context(), ids)
			if err != nil {
				return err
			}
			if a.jsonOutput() {
				return printJSON(cmd.OutOrStdout(), totals)
			}
			rows := make([][]string, 0, len(totals))
			for _, id := range sortedIDs(totals) {
				rows = append(rows, []string{id, fmt.Sprint(totals[id])})
			}
			return printTable(cmd.OutOrStdout(), []string{"STUDENT ID", "TOTAL"}, rows)
		},
	}
}

func (a *app) historyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "Show check-ins per day",
		RunE: func(cmd *cobra.Command, _ []string) error {
			points, err := a.history.GetHistory(cmd.Context())
			if err != nil {
				return err
			}
			if a.jsonOutput() {
				return printJSON(cmd.OutOrStdout(), points)
			}
			rows := make([][]string, 0, len(points))
			for _, p := range points {
				rows = append(rows, []string{p.Date, fmt.Sprint(p.Count)})
			}
			return printTable(cmd.OutOrStdout(), []string{"DATE", "CHECK-INS"}, rows)
		},
	}
}
