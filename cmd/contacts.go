package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pelusa-v/pelusa-im/internal/contacts"
	"github.com/pelusa-v/pelusa-im/internal/relay"
)

var refreshContacts bool

var contactsCmd = &cobra.Command{
	Use:   "contacts",
	Short: "List the cached friends and groups",
	RunE:  runContacts,
}

func init() {
	contactsCmd.Flags().BoolVar(&refreshContacts, "refresh", false, "reload the lists from relay.http first")
}

func runContacts(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	store, err := contacts.Open(cfg.DBPath(), logger.Named("contacts"))
	if err != nil {
		return err
	}
	defer store.Close()

	if refreshContacts {
		if cfg.Relay.HTTP == "" {
			return fmt.Errorf("--refresh needs relay.http in the config")
		}
		if err := store.Refresh(ctx, relay.NewSource(cfg.Relay.HTTP, nil)); err != nil {
			return err
		}
	}

	friends, err := store.Friends(ctx)
	if err != nil {
		return err
	}
	groups, err := store.Groups(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "KIND\tID\tNAME\tREMARK")
	for _, f := range friends {
		fmt.Fprintf(w, "friend\t%d\t%s\t%s\n", f.Id, f.Name, f.Remark)
	}
	for _, g := range groups {
		fmt.Fprintf(w, "group\t%d\t%s\t\n", g.Id, g.Name)
	}
	return w.Flush()
}
