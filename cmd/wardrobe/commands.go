package main

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/lithammer/dedent"
	"github.com/raine/wardrobe/internal/dispatch"
	"github.com/raine/wardrobe/internal/intake"
	"github.com/raine/wardrobe/internal/wardrobe"
	"github.com/spf13/cobra"
)

var (
	fields         itemFlags
	idempotencyKey string

	analyzeCmd = &cobra.Command{
		Use:   "analyze <photo>",
		Short: "Suggest item fields for a photo without saving anything",
		Args:  cobra.ExactArgs(1),
		RunE:  runAnalyze,
	}

	addCmd = &cobra.Command{
		Use:   "add [photo]",
		Short: "Add an item, optionally filling fields from a photo",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runAdd,
	}

	updateCmd = &cobra.Command{
		Use:   "update <id>",
		Short: "Change fields of an item",
		Args:  cobra.ExactArgs(1),
		RunE:  runUpdate,
	}

	deleteCmd = &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an item and its photo",
		Args:  cobra.ExactArgs(1),
		RunE:  runDelete,
	}

	wearCmd = &cobra.Command{
		Use:   "wear <id>",
		Short: "Record that an item was worn today",
		Args:  cobra.ExactArgs(1),
		RunE:  runWear,
	}

	listCmd = &cobra.Command{
		Use:   "list",
		Short: "List your items",
		Args:  cobra.NoArgs,
		RunE:  runList,
	}
)

func init() {
	for _, cmd := range []*cobra.Command{addCmd, updateCmd} {
		fields.register(cmd)
	}
	for _, cmd := range []*cobra.Command{addCmd, updateCmd, deleteCmd, wearCmd} {
		cmd.Flags().StringVar(&idempotencyKey, "key", "", "idempotency key, reuse it when retrying the same change")
	}
}

// itemFlags are the editable item fields as command line flags.
type itemFlags map[wardrobe.Field]*string

func (f *itemFlags) register(cmd *cobra.Command) {
	if *f == nil {
		*f = make(itemFlags)
	}
	for _, field := range []wardrobe.Field{
		wardrobe.FieldName,
		wardrobe.FieldCategory,
		wardrobe.FieldColor,
		wardrobe.FieldBrand,
		wardrobe.FieldStyle,
		wardrobe.FieldMaterial,
		wardrobe.FieldDescription,
		wardrobe.FieldVisibility,
		wardrobe.FieldSeason,
		wardrobe.FieldOccasion,
		wardrobe.FieldPurchasePrice,
		wardrobe.FieldPurchaseDate,
	} {
		v, ok := (*f)[field]
		if !ok {
			v = new(string)
			(*f)[field] = v
		}
		name := strings.ReplaceAll(string(field), "_", "-")
		cmd.Flags().StringVar(v, name, "", string(field))
	}
}

// apply records every flag the user set as an edit.
func (f itemFlags) apply(s wardrobe.FormState) wardrobe.FormState {
	for field, v := range f {
		if *v != "" {
			s = wardrobe.Reduce(s, wardrobe.SetField(field, *v))
		}
	}
	return s
}

func formatText(text string, a ...any) string {
	return fmt.Sprintf(strings.TrimSpace(dedent.Dedent(text)), a...)
}

func formatItem(it wardrobe.Item) string {
	lastWorn := "never"
	if it.LastWorn != nil {
		lastWorn = it.LastWorn.Local().Format("2006-01-02")
	}
	return formatText(`
		%s (%s)
		  id:        %s
		  color:     %s
		  material:  %s
		  brand:     %s
		  worn:      %d times, last %s
		  photo:     %s
		`,
		it.Name, it.Category, it.ID,
		orDash(it.Color.String()), orDash(it.Material.String()), orDash(it.Brand.String()),
		it.WearCount, lastWorn, orDash(it.ImageURL),
	)
}

func formatSuggestion(s intake.Suggestion) string {
	out := formatText(`
		Suggested from %s:
		  name:        %s
		  category:    %s
		  color:       %s
		  material:    %s
		  brand:       %s
		  season:      %s
		  occasion:    %s
		  description: %s
		`,
		s.Source,
		orDash(s.Fields.Name), orDash(s.Fields.Category), orDash(s.Fields.Color),
		orDash(s.Fields.Material), orDash(s.Fields.Brand),
		orDash(strings.Join(s.Fields.Season, ", ")), orDash(strings.Join(s.Fields.Occasion, ", ")),
		orDash(s.Fields.Description),
	)

	if s.Analysis == nil {
		return out
	}
	names := make([]string, 0, len(s.Analysis.Providers))
	for name := range s.Analysis.Providers {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	sb.WriteString(out)
	if s.Analysis.Cached {
		sb.WriteString("\n\nProvider tags (cached):")
	} else {
		sb.WriteString("\n\nProvider tags:")
	}
	for _, name := range names {
		res := s.Analysis.Providers[name]
		sb.WriteString(fmt.Sprintf("\n  %s: %s", name, orDash(strings.Join(append(res.Tags, res.Labels...), "; "))))
	}
	return sb.String()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func describeAttempt(a dispatch.Attempt) string {
	if a.Outcome == dispatch.OutcomeRecovered {
		return "saved through relay"
	}
	return "saved"
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	photo, err := wardrobe.ReadPhoto(args[0])
	if err != nil {
		return err
	}

	a, err := newApp(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer a.Close()

	fmt.Println(formatSuggestion(a.intake.Suggest(ctx, photo)))
	return nil
}

func runAdd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	sub := intake.Submission{
		Form:           fields.apply(wardrobe.FormState{}),
		IdempotencyKey: idempotencyKey,
	}
	if len(args) == 1 {
		photo, err := wardrobe.ReadPhoto(args[0])
		if err != nil {
			return err
		}
		sub.Photo = &photo
	}

	a, err := newApp(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer a.Close()
	sub.OwnerID = a.owner

	res, err := a.intake.Submit(ctx, sub)
	if err != nil {
		return err
	}

	if res.Suggestion != nil {
		fmt.Println(formatSuggestion(*res.Suggestion))
		fmt.Println()
	}
	fmt.Printf("%s, %s\n", formatItem(res.Item), describeAttempt(res.Attempt))
	return nil
}

func runUpdate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer a.Close()

	prev, err := a.item(args[0])
	if err != nil {
		return err
	}

	form := fields.apply(wardrobe.FormFromItem(prev))
	next, err := form.Item(a.owner)
	if err != nil {
		return err
	}
	next.ID = prev.ID
	next.WearCount = prev.WearCount
	next.LastWorn = prev.LastWorn
	next.CreatedAt = prev.CreatedAt

	attempt, err := a.dispatcher.Dispatch(ctx, dispatch.Mutation{Op: dispatch.OpUpdate, Item: next, IdempotencyKey: idempotencyKey})
	if err != nil {
		return err
	}
	fmt.Printf("%s, %s\n", formatItem(*attempt.Record), describeAttempt(attempt))
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer a.Close()

	it, err := a.item(args[0])
	if err != nil {
		return err
	}

	attempt, err := a.dispatcher.Dispatch(ctx, dispatch.Mutation{Op: dispatch.OpDelete, Item: it, IdempotencyKey: idempotencyKey})
	if err != nil {
		return err
	}
	fmt.Printf("Deleted %s, %s\n", it.Name, describeAttempt(attempt))
	return nil
}

func runWear(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer a.Close()

	it, err := a.item(args[0])
	if err != nil {
		return err
	}

	attempt, err := a.dispatcher.Dispatch(ctx, dispatch.Mutation{
		Op:             dispatch.OpUpdate,
		Item:           it.RecordWear(time.Now()),
		IdempotencyKey: idempotencyKey,
	})
	if err != nil {
		return err
	}
	fmt.Printf("%s, %s\n", formatItem(*attempt.Record), describeAttempt(attempt))
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), cfg, true)
	if err != nil {
		return err
	}
	defer a.Close()

	items := a.collection.Items()
	if len(items) == 0 {
		fmt.Println("No items yet.")
		return nil
	}
	for _, it := range items {
		fmt.Println(formatItem(it))
	}
	return nil
}
