package services

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"pricecompare/models"
	"pricecompare/utils"
)

type ReportService struct {
	reference string
	logger    *utils.Logger
}

func NewReportService(reference string, logger *utils.Logger) *ReportService {
	return &ReportService{reference: reference, logger: logger}
}

func (s *ReportService) Generate(query string, groups []*models.ProductGroup) *models.ComparisonReport {
	report := &models.ComparisonReport{
		Query:             query,
		GeneratedAt:       time.Now(),
		ReferenceCurrency: s.reference,
		ProductsByCountry: make(map[string]int),
	}

	var total float64
	for _, g := range groups {
		if g == nil {
			continue
		}
		report.TotalGroups++
		for i := range g.Products {
			p := &g.Products[i]
			report.TotalProducts++
			total += p.ReferencePrice
			report.ProductsByCountry[p.Country]++

			if report.Cheapest == nil || p.ReferencePrice < report.Cheapest.ReferencePrice {
				report.Cheapest = p
			}
			if report.MostExpensive == nil || p.ReferencePrice > report.MostExpensive.ReferencePrice {
				report.MostExpensive = p
			}
		}
	}

	if report.TotalProducts > 0 {
		report.AveragePrice = round2(total / float64(report.TotalProducts))
	}
	s.logger.Debug("[report] %q: %d groups, %d products", query, report.TotalGroups, report.TotalProducts)
	return report
}

// Print writes a human-readable summary of r and its groups to w.
func (s *ReportService) Print(w io.Writer, r *models.ComparisonReport, groups []*models.ProductGroup) {
	sep := strings.Repeat("═", 60)
	thin := strings.Repeat("─", 60)
	cur := r.ReferenceCurrency

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n", sep)
	fmt.Fprintf(w, "\033[1;35m  🛒 PRICE COMPARISON: %s\033[0m\n", r.Query)
	fmt.Fprintf(w, "\033[1;35m%s\033[0m\n\n", sep)

	// Overview
	fmt.Fprintf(w, "\033[1;33m  Overview\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	fmt.Fprintf(w, "  Product groups : \033[1m%d\033[0m\n", r.TotalGroups)
	fmt.Fprintf(w, "  Offers found   : \033[1m%d\033[0m\n", r.TotalProducts)
	if r.TotalProducts > 0 {
		fmt.Fprintf(w, "  Average price  : \033[1;32m%.2f %s\033[0m\n", r.AveragePrice, cur)
	}
	fmt.Fprintln(w)

	if r.TotalProducts == 0 {
		fmt.Fprintf(w, "  No priced offers found\n")
		fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n\n", sep)
		return
	}

	// Cheapest / dearest
	fmt.Fprintf(w, "\033[1;33m  Cheapest Offer\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	printOffer(w, r.Cheapest, cur)
	if r.MostExpensive != nil && r.MostExpensive != r.Cheapest {
		fmt.Fprintf(w, "\033[1;33m  Most Expensive Offer\033[0m\n")
		fmt.Fprintf(w, "  %s\n", thin)
		printOffer(w, r.MostExpensive, cur)
	}

	// Groups
	fmt.Fprintf(w, "\033[1;33m  Groups (cheapest first)\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	for _, g := range groups {
		fmt.Fprintf(w, "  \033[1m%s\033[0m  best %.2f %s\n", g.BaseModel, g.BestPrice, cur)
		for _, p := range g.Products {
			mark := " "
			if p.IsBestPrice {
				mark = "★"
			}
			fmt.Fprintf(w, "   %s %-14s %10.2f %s  (%.2f %s)  %s\n",
				mark, truncate(p.Domain, 14), p.ReferencePrice, cur, p.Price, p.Currency, truncate(p.Title, 40))
		}
	}
	fmt.Fprintln(w)

	// Offers by country
	fmt.Fprintf(w, "\033[1;33m  Offers by Country\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	type countryCount struct {
		country string
		count   int
	}
	var counts []countryCount
	for c, n := range r.ProductsByCountry {
		counts = append(counts, countryCount{c, n})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].count != counts[j].count {
			return counts[i].count > counts[j].count
		}
		return counts[i].country < counts[j].country
	})
	for _, cc := range counts {
		bar := strings.Repeat("█", cc.count)
		fmt.Fprintf(w, "  %-30s %s (%d)\n", truncate(cc.country, 28), bar, cc.count)
	}

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n\n", sep)
}

func printOffer(w io.Writer, p *models.Product, cur string) {
	fmt.Fprintf(w, "  %s\n", truncate(p.Title, 56))
	fmt.Fprintf(w, "  Store : %s (%s)\n", p.Domain, p.Country)
	fmt.Fprintf(w, "  Price : \033[1;32m%.2f %s\033[0m (%.2f %s)\n", p.ReferencePrice, cur, p.Price, p.Currency)
	fmt.Fprintf(w, "  Link  : %s\n\n", p.Link)
}

func round2(f float64) float64 {
	return float64(int(f*100+0.5)) / 100
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
