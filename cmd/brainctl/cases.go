package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nw9663644-eng/BRAIN-IMAGE-AI-ASSISTANT/pkg/types"
)

var (
	createDescription string
	createModality    string
	createTags        []string
	createImagePath   string
)

func init() {
	createCaseCmd.Flags().StringVar(&createDescription, "description", "", "symptom description")
	createCaseCmd.Flags().StringVar(&createModality, "modality", "", "imaging modality (MRI, CT, X-Ray, Ultrasound)")
	createCaseCmd.Flags().StringSliceVar(&createTags, "tag", nil, "case tag, repeatable")
	createCaseCmd.Flags().StringVar(&createImagePath, "image", "", "path to the scan image")
	createCaseCmd.MarkFlagRequired("description")

	casesCmd.AddCommand(listCasesCmd)
	casesCmd.AddCommand(showCaseCmd)
	casesCmd.AddCommand(createCaseCmd)
	casesCmd.AddCommand(messageCmd)
	casesCmd.AddCommand(diagnoseCmd)
	casesCmd.AddCommand(watchCmd)

	rootCmd.AddCommand(casesCmd)
}

var casesCmd = &cobra.Command{
	Use:   "cases",
	Short: "Work with medical cases",
}

var listCasesCmd = &cobra.Command{
	Use:   "list",
	Short: "List cases, refreshing from the backend when reachable",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		if err := a.requireSession(); err != nil {
			return err
		}

		a.coordinator.Refresh(cmd.Context())

		visible := a.view.VisibleCases()
		if len(visible) == 0 {
			fmt.Println("No cases.")
			return nil
		}

		fmt.Printf("%d cases (%d pending, %d unread)\n\n", len(visible), a.view.PendingCount(), a.view.UnreadCount())
		for _, mc := range visible {
			printCaseLine(mc, a.coordinator.Session().Role)
		}
		return nil
	},
}

var showCaseCmd = &cobra.Command{
	Use:   "show <case-id>",
	Short: "Show a case with its message thread",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		if err := a.requireSession(); err != nil {
			return err
		}

		a.coordinator.Refresh(cmd.Context())

		mc := a.view.SelectCase(cmd.Context(), args[0])
		if mc == nil {
			return fmt.Errorf("case %s not found", args[0])
		}

		printCaseDetail(mc)
		return nil
	},
}

var createCaseCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new case, queued locally when the backend is down",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		if err := a.requireSession(); err != nil {
			return err
		}

		input := &types.CreateCaseInput{
			Description: createDescription,
			Modality:    types.Modality(createModality),
			Tags:        createTags,
		}
		if createImagePath != "" {
			data, err := os.ReadFile(createImagePath)
			if err != nil {
				return fmt.Errorf("failed to read image: %w", err)
			}
			input.ImageName = filepath.Base(createImagePath)
			input.ImageData = data
		}

		mc := a.coordinator.CreateCase(cmd.Context(), input)
		if mc.SyncState == types.SyncStateLocalOnly {
			fmt.Printf("Backend unreachable, case %s saved locally\n", mc.ID)
		} else {
			fmt.Printf("Case %s created\n", mc.ID)
		}
		return nil
	},
}

var messageCmd = &cobra.Command{
	Use:   "message <case-id> <text>",
	Short: "Send a message on a case thread",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		if err := a.requireSession(); err != nil {
			return err
		}

		a.coordinator.Refresh(cmd.Context())
		if a.coordinator.Case(args[0]) == nil {
			return fmt.Errorf("case %s not found", args[0])
		}

		msg := a.coordinator.SendMessage(cmd.Context(), args[0], args[1])
		if msg == nil {
			return fmt.Errorf("failed to send message")
		}
		if msg.SyncState == types.SyncStateLocalOnly {
			fmt.Println("Backend unreachable, message saved locally")
		} else {
			fmt.Println("Message sent")
		}
		return nil
	},
}

var diagnoseCmd = &cobra.Command{
	Use:   "diagnose <case-id> <feedback>",
	Short: "Submit a diagnosis, completing the case (doctors only)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		if err := a.requireSession(); err != nil {
			return err
		}
		if a.coordinator.Session().Role != types.RoleDoctor {
			return fmt.Errorf("only doctors can submit a diagnosis")
		}

		a.coordinator.Refresh(cmd.Context())
		if a.coordinator.Case(args[0]) == nil {
			return fmt.Errorf("case %s not found", args[0])
		}

		mc := a.coordinator.SubmitDiagnosis(cmd.Context(), args[0], args[1])
		if mc == nil {
			return fmt.Errorf("failed to submit diagnosis")
		}
		if mc.SyncState == types.SyncStateLocalOnly {
			fmt.Println("Backend unreachable, diagnosis saved locally")
		} else {
			fmt.Println("Diagnosis submitted")
		}
		return nil
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Keep the case list synchronized, printing changes as they arrive",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		if err := a.requireSession(); err != nil {
			return err
		}

		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		role := a.coordinator.Session().Role
		a.coordinator.Start(ctx)

		fmt.Println("Watching for case updates, Ctrl-C to stop...")
		seen := map[string]string{}
		ticker := time.NewTicker(time.Duration(a.cfg.Sync.PollInterval) * time.Second)
		defer ticker.Stop()

		for {
			for _, mc := range a.view.VisibleCases() {
				fingerprint := fmt.Sprintf("%s|%d|%v", mc.Status, len(mc.Messages), mc.UnreadFor(role))
				if prev, ok := seen[mc.ID]; !ok || prev != fingerprint {
					seen[mc.ID] = fingerprint
					printCaseLine(mc, role)
				}
			}

			select {
			case <-ctx.Done():
				fmt.Println("Stopped.")
				return nil
			case <-ticker.C:
			}
		}
	},
}

func printCaseLine(mc *types.MedicalCase, role types.UserRole) {
	marker := " "
	if mc.UnreadFor(role) {
		marker = "*"
	}
	local := ""
	if mc.SyncState == types.SyncStateLocalOnly {
		local = " [local]"
	}
	fmt.Printf("%s %-20s %-10s %-8s %s%s\n", marker, mc.ID, mc.PatientName, mc.Status, mc.Description, local)
}

func printCaseDetail(mc *types.MedicalCase) {
	fmt.Printf("Case %s\n", mc.ID)
	fmt.Printf("  Patient:     %s (%s)\n", mc.PatientName, mc.PatientID)
	fmt.Printf("  Status:      %s\n", mc.Status)
	fmt.Printf("  Created:     %s\n", mc.Timestamp)
	if mc.Modality != "" {
		fmt.Printf("  Modality:    %s\n", mc.Modality)
	}
	if len(mc.Tags) > 0 {
		fmt.Printf("  Tags:        %s\n", strings.Join(mc.Tags, ", "))
	}
	fmt.Printf("  Description: %s\n", mc.Description)
	if mc.DoctorFeedback != "" {
		fmt.Printf("  Diagnosis:   %s (%s, %s)\n", mc.DoctorFeedback, mc.DoctorName, mc.ReplyTimestamp)
	}
	if len(mc.Messages) > 0 {
		fmt.Println("  Messages:")
		for _, msg := range mc.Messages {
			fmt.Printf("    [%s] %s: %s\n", msg.Timestamp, msg.SenderName, msg.Text)
		}
	}
}
