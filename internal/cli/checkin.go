package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/attendance-api/internal/checkin"
)

func (a *app) checkinCmd() *cobra.Command {
	var (
		age    int
		gender string
		phone  string
		noWait bool
		delay  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "checkin <name>",
		Short: "Check a student in, registering them when the name is new",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			coord := checkin.New(checkin.Config{
				API:            a.api,
				Cache:          a.store,
				Metrics:        a.metrics,
				History:        a.history,
				Notifier:       printNotifier{out: out, err: cmd.ErrOrStderr()},
				Clock:          a.opts.Clock,
				Logger:         a.logger,
				ReconcileDelay: delay,
			})
			if snapshot, err := a.metrics.GetMetrics(ctx); err == nil {
				coord.View().Replace(*snapshot)
			} else {
				a.logger.Debug("metrics unavailable before check-in", zap.Error(err))
			}
			runCtx, cancel := context.WithCancel(ctx)
			defer cancel()
			coord.Start(runCtx)
			defer coord.Stop()

			res, err := coord.CheckIn(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			if res.State == checkin.NeedsDetails {
				details := checkin.NewStudentDetails{Age: age, Gender: gender, PhoneNumber: phone}
				if !cmd.Flags().Changed("age") {
					details, err = promptDetails(cmd.InOrStdin(), out, res.Prompt.Name, details)
					if err != nil {
						coord.Cancel()
						return err
					}
				}
				if res, err = coord.SubmitDetails(ctx, details); err != nil {
					return err
				}
			}

			if !noWait && res.State != checkin.NeedsDetails {
				waitCtx, stop := context.WithTimeout(ctx, 2*coordDelay(delay)+10*time.Second)
				defer stop()
				if err := coord.WaitIdle(waitCtx); err != nil {
					a.logger.Warn("resync did not finish", zap.Error(err))
				}
			}

			if a.jsonOutput() {
				return printJSON(out, map[string]interface{}{
					"state":   res.State.String(),
					"student": res.Student,
					"date":    res.Date,
					"metrics": coord.View().Snapshot(),
				})
			}
			return printMetrics(out, coord.View().Snapshot())
		},
	}
	cmd.Flags().IntVar(&age, "age", 0, "Age of a new student")
	cmd.Flags().StringVar(&gender, "gender", "", "Gender of a new student")
	cmd.Flags().StringVar(&phone, "phone", "", "Phone number of a new student")
	cmd.Flags().BoolVar(&noWait, "no-wait", false, "Exit without waiting for the server resync")
	cmd.Flags().DurationVar(&delay, "resync-delay", checkin.DefaultReconcileDelay, "Delay before resyncing metrics with the server")
	return cmd
}

func coordDelay(d time.Duration) time.Duration {
	if d <= 0 {
		return checkin.DefaultReconcileDelay
	}
	return d
}

// promptDetails asks for the fields a new student needs. Blank answers keep the defaults.
func promptDetails(in io.Reader, out io.Writer, name string, defaults checkin.NewStudentDetails) (checkin.NewStudentDetails, error) {
	details := defaults
	reader := bufio.NewReader(in)
	fmt.Fprintf(out, "%q is not on the roster. Enter details to register.\n", name)

	ask := func(label string) (string, error) {
		fmt.Fprintf(out, "%s: ", label)
		line, err := reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", err
		}
		if errors.Is(err, io.EOF) && line == "" {
			return "", io.ErrUnexpectedEOF
		}
		return strings.TrimSpace(line), nil
	}

	raw, err := ask("Age")
	if err != nil {
		return details, fmt.Errorf("read age: %w", err)
	}
	if raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return details, fmt.Errorf("invalid age %q", raw)
		}
		details.Age = n
	}
	if raw, err = ask("Gender"); err != nil {
		return details, fmt.Errorf("read gender: %w", err)
	} else if raw != "" {
		details.Gender = raw
	}
	if raw, err = ask("Phone number"); err != nil {
		return details, fmt.Errorf("read phone number: %w", err)
	} else if raw != "" {
		details.PhoneNumber = raw
	}
	return details, nil
}
