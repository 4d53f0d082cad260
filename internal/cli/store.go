package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ppiankov/npipolicy/internal/adaptive"
	"github.com/ppiankov/npipolicy/internal/policy"
	"github.com/ppiankov/npipolicy/internal/store"
)

var (
	storeAdaptive bool
	storeVersion  string
	storeFormat   string
)

func init() {
	rootCmd.AddCommand(storeCmd)
	storeCmd.AddCommand(storePutCmd, storeGetCmd, storeListCmd)
	storePutCmd.Flags().BoolVar(&storeAdaptive, "adaptive", false, "File is an adaptive policy document")
	storeGetCmd.Flags().StringVar(&storeVersion, "version", "", "Version id (default latest)")
	storeGetCmd.Flags().StringVarP(&storeFormat, "format", "f", "yaml", "Output format (yaml|json)")
}

var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Versioned policy storage",
	Long:  "Commands for recording policy versions in the local SQLite store\nconfigured by store.path.",
}

var storePutCmd = &cobra.Command{
	Use:   "put <name> <policy.yaml>",
	Short: "Validate a policy file and store it as a new version",
	Args:  cobra.ExactArgs(2),
	RunE:  runStorePut,
}

var storeGetCmd = &cobra.Command{
	Use:   "get <name>",
	Short: "Print a stored policy version",
	Args:  cobra.ExactArgs(1),
	RunE:  runStoreGet,
}

var storeListCmd = &cobra.Command{
	Use:   "list [name]",
	Short: "List stored policy names, or the versions of one name",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runStoreList,
}

func openStore() (*store.Store, error) {
	return store.Open(cfg.Store.Path, store.WithLogger(logger))
}

func runStorePut(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	var rec store.Record
	if storeAdaptive {
		p, err := adaptive.Load(args[1])
		if err != nil {
			return err
		}
		rec, err = s.PutAdaptive(args[0], p)
		if err != nil {
			return err
		}
	} else {
		p, err := policy.Load(args[1])
		if err != nil {
			return err
		}
		rec, err = s.PutPolicy(args[0], p)
		if err != nil {
			return err
		}
	}
	fmt.Printf("%s %s %s\n", rec.Name, rec.VersionID, rec.Hash)
	return nil
}

func runStoreGet(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	var rec store.Record
	if storeVersion != "" {
		rec, err = s.Version(storeVersion)
		if err == nil && rec.Name != args[0] {
			err = fmt.Errorf("version %s belongs to %q", storeVersion, rec.Name)
		}
	} else {
		rec, err = s.Latest(args[0])
	}
	if err != nil {
		return err
	}

	switch rec.Kind {
	case store.KindAdaptive:
		p, err := rec.Adaptive()
		if err != nil {
			return err
		}
		return writeDocument(p.Document(), storeFormat)
	default:
		p, err := rec.Policy()
		if err != nil {
			return err
		}
		out, err := policy.Encode(p, storeFormat)
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(out)
		return err
	}
}

func writeDocument(doc adaptive.Document, format string) error {
	switch format {
	case "json":
		out, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	case "yaml", "":
		return encodeYAML(os.Stdout, doc)
	default:
		return fmt.Errorf("unknown format %q (yaml|json)", format)
	}
}

func runStoreList(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	if len(args) == 0 {
		names, err := s.Names()
		if err != nil {
			return err
		}
		if len(names) == 0 {
			fmt.Println("No stored policies.")
			return nil
		}
		fmt.Println(strings.Join(names, "\n"))
		return nil
	}

	versions, err := s.Versions(args[0])
	if err != nil {
		return err
	}
	if len(versions) == 0 {
		return fmt.Errorf("%q: %w", args[0], store.ErrNotFound)
	}
	for _, v := range versions {
		fmt.Printf("  %s  %-8s %s  %s\n",
			v.CreatedAt.Format("2006-01-02 15:04:05"), v.Kind, v.VersionID, v.Hash)
	}
	return nil
}
