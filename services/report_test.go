package services

import (
	"bytes"
	"strings"
	"testing"

	"pricecompare/models"
)

func sampleGroups() []*models.ProductGroup {
	return GroupProducts([]*models.Listing{
		{Country: "Spain", Domain: "amazon.es", Currency: "EUR", Title: "Apple iPhone 16 128GB", Link: "https://amazon.es/dp/1", Price: 959, ReferencePrice: 959},
		{Country: "France", Domain: "amazon.fr", Currency: "EUR", Title: "Apple iPhone 16 (128 Go)", Link: "https://amazon.fr/dp/1", Price: 929, ReferencePrice: 929},
		{Country: "UK", Domain: "amazon.co.uk", Currency: "GBP", Title: "Sony PlayStation 5 Slim", Link: "https://amazon.co.uk/dp/2", Price: 389, ReferencePrice: 455.13},
		{Country: "Spain", Domain: "amazon.es", Currency: "EUR", Title: "Kindle Paperwhite", Link: "https://amazon.es/dp/3", Price: 169.99, ReferencePrice: 169.99},
	})
}

func TestReportCounts(t *testing.T) {
	svc := NewReportService("EUR", newTestLogger())
	r := svc.Generate("mixed", sampleGroups())
	if r.TotalGroups != 3 {
		t.Errorf("TotalGroups: got %d, want 3", r.TotalGroups)
	}
	if r.TotalProducts != 4 {
		t.Errorf("TotalProducts: got %d, want 4", r.TotalProducts)
	}
	if r.ProductsByCountry["Spain"] != 2 || r.ProductsByCountry["UK"] != 1 {
		t.Errorf("ProductsByCountry: got %v", r.ProductsByCountry)
	}
}

func TestReportPrices(t *testing.T) {
	svc := NewReportService("EUR", newTestLogger())
	r := svc.Generate("mixed", sampleGroups())

	wantAvg := 628.28
	if r.AveragePrice != wantAvg {
		t.Errorf("AveragePrice: got %.2f, want %.2f", r.AveragePrice, wantAvg)
	}
	if r.Cheapest == nil || r.Cheapest.Title != "Kindle Paperwhite" {
		t.Errorf("Cheapest: got %+v", r.Cheapest)
	}
	if r.MostExpensive == nil || r.MostExpensive.Domain != "amazon.es" || r.MostExpensive.Price != 959 {
		t.Errorf("MostExpensive: got %+v", r.MostExpensive)
	}
}

func TestReportEmpty(t *testing.T) {
	svc := NewReportService("EUR", newTestLogger())
	r := svc.Generate("nothing", nil)
	if r.TotalProducts != 0 || r.AveragePrice != 0 || r.Cheapest != nil {
		t.Errorf("expected empty report, got %+v", r)
	}

	var buf bytes.Buffer
	svc.Print(&buf, r, nil)
	if !strings.Contains(buf.String(), "No priced offers found") {
		t.Errorf("empty report output: %q", buf.String())
	}
}

func TestReportPrint(t *testing.T) {
	svc := NewReportService("EUR", newTestLogger())
	groups := sampleGroups()
	r := svc.Generate("mixed", groups)

	var buf bytes.Buffer
	svc.Print(&buf, r, groups)
	out := buf.String()

	for _, want := range []string{"PRICE COMPARISON: mixed", "iPhone 16", "PlayStation 5", "★", "amazon.fr", "Kindle Paperwhite"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate short: %q", got)
	}
	if got := truncate("Apple iPhone 16 Pro Max", 10); got != "Apple i..." {
		t.Errorf("truncate long: %q", got)
	}
}
