package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"go-authorisation-service/internal/token"
)

func newTokenCommand() *cobra.Command {
	var algorithm string

	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "Sign and decode session tokens",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	tokenCmd.PersistentFlags().StringVar(&algorithm, "algorithm", "", "HMAC algorithm. Defaults to JWT_ALGORITHM or HS256.")

	codec := func() *token.Codec {
		alg := envOr(algorithm, "JWT_ALGORITHM")
		if alg == "" {
			alg = "HS256"
		}
		return token.NewCodec(os.Getenv("JWT_SECRET"), alg)
	}

	tokenCmd.AddCommand(&cobra.Command{
		Use:   "decode <token>",
		Short: "Verify a token with JWT_SECRET and print its payload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := codec().Decode(args[0])
			if err != nil {
				return err
			}
			if payload == nil {
				return fmt.Errorf("token is invalid or expired")
			}
			if payload.SessionID == nil {
				cmd.Printf("session_id=<none> expires=%s\n", payload.Expires.Format(time.RFC3339))
				return nil
			}
			cmd.Printf("session_id=%d expires=%s\n", *payload.SessionID, payload.Expires.Format(time.RFC3339))
			return nil
		},
	})

	var ttl time.Duration
	signCmd := &cobra.Command{
		Use:   "sign <session-id>",
		Short: "Sign a token for an existing session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sessionID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid session id %q", args[0])
			}

			signed, err := codec().Sign(token.NewPayload(sessionID, time.Now().Add(ttl)))
			if err != nil {
				return err
			}
			cmd.Println(signed)
			return nil
		},
	}
	signCmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "Token lifetime")
	tokenCmd.AddCommand(signCmd)

	return tokenCmd
}
