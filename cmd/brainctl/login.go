package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nw9663644-eng/BRAIN-IMAGE-AI-ASSISTANT/pkg/types"
)

var (
	loginRole     string
	loginPassword string
)

func init() {
	loginCmd.Flags().StringVar(&loginRole, "role", "PATIENT", "account role: PATIENT or DOCTOR")
	loginCmd.Flags().StringVar(&loginPassword, "password", "", "account password")
	loginCmd.MarkFlagRequired("password")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
}

var loginCmd = &cobra.Command{
	Use:   "login <user-id>",
	Short: "Authenticate against the case service and store the session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}

		role := types.UserRole(strings.ToUpper(loginRole))
		if !role.Valid() {
			return fmt.Errorf("invalid role %q, expected PATIENT or DOCTOR", loginRole)
		}

		payload, err := json.Marshal(&types.LoginRequest{
			ID:       args[0],
			Password: loginPassword,
			Role:     role,
		})
		if err != nil {
			return err
		}

		url := strings.TrimRight(a.cfg.Sync.BaseURL, "/") + "/api/auth/login"
		httpClient := &http.Client{Timeout: 10 * time.Second}
		resp, err := httpClient.Post(url, "application/json", bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("login request failed: %w", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read login response: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			var envelope struct {
				Message string `json:"message"`
			}
			if json.Unmarshal(body, &envelope) == nil && envelope.Message != "" {
				return fmt.Errorf("login failed: %s", envelope.Message)
			}
			return fmt.Errorf("login failed: status %d", resp.StatusCode)
		}

		var token types.TokenResponse
		if err := json.Unmarshal(body, &token); err != nil {
			return fmt.Errorf("failed to parse login response: %w", err)
		}

		if err := a.store.Set(keyAuthToken, []byte(token.AccessToken)); err != nil {
			return fmt.Errorf("failed to store session token: %w", err)
		}
		a.client.SetToken(token.AccessToken)
		a.coordinator.SetSession(token.User)

		fmt.Printf("Logged in as %s (%s)\n", token.User.Name, token.User.Role)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Clear the stored session and local case cache",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}

		a.coordinator.ClearSession()
		a.store.Remove(keyAuthToken)

		fmt.Println("Logged out")
		return nil
	},
}
