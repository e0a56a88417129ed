package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"example.com/footprint/internal/bootstrap"
	"example.com/footprint/internal/emissions"
)

type calculateResult struct {
	Activity      string                `json:"activity"`
	CO2Kg         float64               `json:"co2_emissions"`
	CanonicalUnit string                `json:"canonical_unit"`
	FactorVersion string                `json:"factor_version"`
	Equivalents   emissions.Equivalents `json:"equivalents"`
}

func newCalculateCmd(st *state) *cobra.Command {
	var in emissions.Activity

	cmd := &cobra.Command{
		Use:   "calculate",
		Short: "Resolve the CO2 equivalent of one activity without storing it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			resolver, err := bootstrap.NewResolver(st.cfg)
			if err != nil {
				return err
			}
			kg, err := resolver.Resolve(in)
			if err != nil {
				return err
			}
			canonical, err := resolver.CanonicalUnit(in.Category)
			if err != nil {
				return err
			}
			st.logger.Debug().Str("activity", emissions.Describe(in)).Float64("co2_kg", kg).Msg("resolved")

			res := calculateResult{
				Activity:      emissions.Describe(in),
				CO2Kg:         kg,
				CanonicalUnit: canonical,
				FactorVersion: resolver.Table().Version(),
				Equivalents:   emissions.Equivalence(kg),
			}
			if st.output == outputJSON {
				return writeJSON(cmd.OutOrStdout(), res)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s = %s CO2e (factors %s)\n", res.Activity, emissions.FormatKg(kg), res.FactorVersion)
			if !res.Equivalents.IsEmpty {
				fmt.Fprintln(out, res.Equivalents.DisplayText)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&in.Category, "category", "", "activity category")
	cmd.Flags().StringVar(&in.Subcategory, "subcategory", "", "activity subcategory; empty uses the category base factor")
	cmd.Flags().Float64Var(&in.Quantity, "quantity", 0, "activity quantity")
	cmd.Flags().StringVar(&in.Unit, "unit", "", "unit of quantity")
	_ = cmd.MarkFlagRequired("category")
	_ = cmd.MarkFlagRequired("quantity")
	_ = cmd.MarkFlagRequired("unit")
	return cmd
}

func newCategoriesCmd(st *state) *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List categories, units and subcategory factors",
		RunE: func(cmd *cobra.Command, _ []string) error {
			resolver, err := bootstrap.NewResolver(st.cfg)
			if err != nil {
				return err
			}
			table := resolver.Table()
			if st.output == outputJSON {
				return writeJSON(cmd.OutOrStdout(), map[string]interface{}{
					"version":    table.Version(),
					"categories": table.Catalog(),
				})
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(tw, "CATEGORY\tUNIT\tUNITS\tSUBCATEGORIES\n")
			for _, c := range table.Catalog() {
				subs := make([]string, 0, len(c.Subcategories))
				for _, s := range c.Subcategories {
					subs = append(subs, fmt.Sprintf("%s=%g", s.Name, s.Factor))
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c.Name, c.CanonicalUnit, strings.Join(c.Units, ","), strings.Join(subs, " "))
			}
			fmt.Fprintf(tw, "\nfactor table version %s\n", table.Version())
			return tw.Flush()
		},
	}
}

func newConvertCmd(st *state) *cobra.Command {
	var category, subcategory, from, to string
	var quantity float64

	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Convert a quantity between two units accepted by a category",
		RunE: func(cmd *cobra.Command, _ []string) error {
			resolver, err := bootstrap.NewResolver(st.cfg)
			if err != nil {
				return err
			}
			converted, err := resolver.Convert(category, subcategory, quantity, from, to)
			if err != nil {
				return err
			}
			if st.output == outputJSON {
				return writeJSON(cmd.OutOrStdout(), map[string]interface{}{
					"quantity": converted,
					"unit":     to,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%g %s = %g %s\n", quantity, from, converted, to)
			return nil
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "activity category")
	cmd.Flags().StringVar(&subcategory, "subcategory", "", "activity subcategory")
	cmd.Flags().Float64Var(&quantity, "quantity", 0, "quantity to convert")
	cmd.Flags().StringVar(&from, "from", "", "source unit")
	cmd.Flags().StringVar(&to, "to", "", "target unit")
	for _, name := range []string{"category", "quantity", "from", "to"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}
