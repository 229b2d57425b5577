package cmd

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"billsplit/bill"
	"billsplit/orders"
)

func settleCommand() *cobra.Command {
	var (
		inputPath string
		people    int
		mode      string
		groups    []string
		paid      []string
	)

	cmd := &cobra.Command{
		Use:   "settle",
		Short: "settle an order history file",
		Long:  `settle reads a table's order history JSON, applies the given groups and paid marks, and prints what is owed in the chosen mode.`,
		Example: `billsplit settle --input orders.json --mode even --people 3
billsplit settle -i orders.json --mode groups --group "Ana=501-1:2" --group "Luis=501-2:2" --paid Ana`,
		RunE: func(cmd *cobra.Command, args []string) error {
			history, err := orders.NewFileSource(inputPath).FetchOrders(context.Background(), "")
			if err != nil {
				return err
			}

			s := bill.NewSettlement()
			s.SetOrders(history)

			if !s.SetPeopleCount(people) {
				return fmt.Errorf("people must be at least 1, got %d", people)
			}
			for _, arg := range groups {
				name, selections, err := ParseGroupFlag(arg)
				if err != nil {
					return err
				}
				if _, ok := s.CreateGroup(name, selections); !ok {
					return fmt.Errorf("group %q rejected: check the name and that quantities fit what is still available", name)
				}
			}
			for _, name := range paid {
				if err := markPaid(s, name); err != nil {
					return err
				}
			}
			if !s.SetMode(bill.Mode(mode)) {
				return fmt.Errorf("unknown mode %q (immediate, even, groups)", mode)
			}

			return printSettlement(cmd.OutOrStdout(), s)
		},
	}

	cmd.Flags().StringVarP(&inputPath, "input", "i", "", "order history JSON file (required)")
	_ = cmd.MarkFlagRequired("input")
	cmd.Flags().IntVarP(&people, "people", "p", bill.DefaultPeopleCount, "diners for the even split")
	cmd.Flags().StringVarP(&mode, "mode", "m", string(bill.ModeImmediate), "settlement mode (immediate, even, groups)")
	cmd.Flags().StringArrayVarP(&groups, "group", "g", nil, `payment group as "Name=entry:qty,entry:qty" (repeatable)`)
	cmd.Flags().StringArrayVar(&paid, "paid", nil, "name of a group that already paid (repeatable)")

	return cmd
}

// ParseGroupFlag parses "Name=entry:qty,entry:qty". Entry ids may contain dashes.
func ParseGroupFlag(arg string) (string, map[string]int, error) {
	name, items, ok := strings.Cut(arg, "=")
	if !ok {
		return "", nil, fmt.Errorf("group %q: expected Name=entry:qty,...", arg)
	}
	name = strings.TrimSpace(name)

	selections := make(map[string]int)
	for _, item := range strings.Split(items, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		entryID, qty, ok := strings.Cut(item, ":")
		if !ok {
			return "", nil, fmt.Errorf("group %q: item %q is not entry:qty", name, item)
		}
		n, err := strconv.Atoi(strings.TrimSpace(qty))
		if err != nil {
			return "", nil, fmt.Errorf("group %q: quantity of %q: %w", name, entryID, err)
		}
		selections[strings.TrimSpace(entryID)] += n
	}
	return name, selections, nil
}

func markPaid(s *bill.Settlement, name string) error {
	for _, g := range s.Groups() {
		if g.Name != strings.TrimSpace(name) {
			continue
		}
		if s.IsPaid(g.ID) {
			return nil
		}
		s.TogglePaid(g.ID)
		return nil
	}
	return fmt.Errorf("no group named %q", name)
}

func printSettlement(out io.Writer, s *bill.Settlement) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	fmt.Fprintln(w, "ENTRY\tNAME\tQTY\tSUBTOTAL\tAVAILABLE")
	for _, e := range s.Entries() {
		fmt.Fprintf(w, "%s\t%s\t%d\t%.2f\t%d\n", e.ID, e.Name, e.Quantity, e.Subtotal, s.MaxAssignable(e.ID))
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Total:\t%.2f\n", s.Total())
	fmt.Fprintf(w, "Mode:\t%s\n", s.Mode())
	fmt.Fprintf(w, "People:\t%d\n", s.PeopleCount())
	fmt.Fprintf(w, "Per person:\t%.2f\n", s.PerPersonShare())

	if groups := s.Groups(); len(groups) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "GROUP\tITEMS\tSUBTOTAL\tPAID")
		for _, g := range groups {
			items := make([]string, 0, len(g.Items))
			for _, item := range g.Items {
				items = append(items, fmt.Sprintf("%s x%d", item.Entry.Name, item.SelectedQuantity))
			}
			fmt.Fprintf(w, "%s\t%s\t%.2f\t%t\n", g.Name, strings.Join(items, ", "), g.Subtotal, s.IsPaid(g.ID))
		}
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Paid:\t%.2f\n", s.PaidAmount())
	fmt.Fprintf(w, "Pending:\t%.2f\n", s.PendingAmount())
	fmt.Fprintf(w, "Amount due:\t%.2f\n", s.AmountDue())

	return w.Flush()
}
