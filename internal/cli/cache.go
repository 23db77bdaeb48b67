package cli

import (
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"fundamentals/internal/table"
)

func newCacheCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect the response cache",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "ls",
		Short: "List cached entries with their age",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd, flags)
			if err != nil {
				return err
			}

			entries, err := a.store.List()
			if err != nil {
				return err
			}

			out := table.New("kind", "status", "rows", "age", "modified")
			for _, e := range entries {
				identifier, kind := splitKey(e.Key)
				status := "data"
				if e.Empty {
					status = "empty"
				}
				_ = out.Append(identifier,
					kind,
					status,
					strconv.Itoa(e.Rows),
					a.store.Age(e).Round(time.Second).String(),
					e.ModTime.Format(time.DateTime),
				)
			}

			a.logger.Debug().Str("dir", a.store.Dir()).Int("entries", len(entries)).Msg("listed cache")
			return a.write(out)
		},
	})

	return cmd
}

// splitKey splits a cache key into identifier and kind
func splitKey(key string) (string, string) {
	i := strings.LastIndex(key, "_")
	if i < 0 {
		return key, ""
	}
	return key[:i], key[i+1:]
}
