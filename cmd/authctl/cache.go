package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"

	"go-authorisation-service/internal/cache"
	"go-authorisation-service/internal/config"
)

func newCacheCommand() *cobra.Command {
	var opts cache.RedisOptions

	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and clear the response cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cacheCmd.PersistentFlags().StringVar(&opts.Addr, "redis-addr", "", "Redis address. Can also be set via REDIS_ADDR.")
	cacheCmd.PersistentFlags().StringVar(&opts.Username, "redis-username", "", "Redis username. Can also be set via REDIS_USERNAME.")

	cacheCmd.AddCommand(&cobra.Command{
		Use:   "clear <pattern>",
		Short: "Delete every key matching a glob pattern",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Addr = envOr(opts.Addr, "REDIS_ADDR")
			opts.Username = envOr(opts.Username, "REDIS_USERNAME")
			opts.Password = os.Getenv("REDIS_PASSWORD")
			if db, err := strconv.Atoi(envOr("", "REDIS_DB")); err == nil {
				opts.DB = db
			}
			if opts.Addr == "" {
				return fmt.Errorf("--redis-addr or REDIS_ADDR is required")
			}

			configured, err := config.ParseAliases(os.Getenv("CACHE_ALIAS"))
			if err != nil {
				return err
			}
			aliases := make([]cache.Alias, 0, len(configured))
			for _, alias := range configured {
				aliases = append(aliases, cache.Alias{From: alias.From, To: alias.To})
			}

			client, err := cache.DialRedis(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer client.Close()

			responseCache := cache.New(cache.NewRedisStore(client), aliases, logr.Discard())
			cleared := responseCache.ClearPattern(cmd.Context(), args[0], nil)
			cmd.Printf("Cleared %d key(s) matching %q\n", cleared, responseCache.AliasKey(args[0]))
			return nil
		},
	})

	return cacheCmd
}
