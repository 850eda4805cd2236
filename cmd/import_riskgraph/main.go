// Команда import_riskgraph загружает граф рисков из HTML справочника рисков.
// Справочник — выгрузка внутреннего портала: таблица узлов с классом risk-nodes
// и таблица связей с классом risk-edges.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"mesdiag/database"
)

func main() {
	dbPath := flag.String("db", "mesdiag.db", "путь к базе данных")
	htmlPath := flag.String("file", "", "путь к HTML файлу справочника рисков")
	flag.Parse()

	if *htmlPath == "" {
		fmt.Fprintln(os.Stderr, "использование: import_riskgraph -file risks.html [-db mesdiag.db]")
		os.Exit(2)
	}

	db, err := database.NewProcessDB(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	file, err := os.Open(*htmlPath)
	if err != nil {
		log.Fatalf("Failed to open %s: %v", *htmlPath, err)
	}
	defer file.Close()

	doc, err := goquery.NewDocumentFromReader(file)
	if err != nil {
		log.Fatalf("Failed to parse HTML: %v", err)
	}

	nodes, nodeErrs := importNodes(db, doc)
	edges, edgeErrs := importEdges(db, doc)

	for _, e := range append(nodeErrs, edgeErrs...) {
		log.Printf("WARN: %s", e)
	}

	totalNodes, totalEdges, err := db.RiskGraphCounts()
	if err != nil {
		log.Fatalf("Failed to count risk graph: %v", err)
	}

	log.Printf("Imported %d risk nodes and %d edges (graph now: %d nodes, %d edges)",
		nodes, edges, totalNodes, totalEdges)
}

// importNodes разбирает таблицу узлов риска:
// колонки code, name, category, base_probability, match_keyword, weight
func importNodes(db *database.ProcessDB, doc *goquery.Document) (int, []string) {
	imported := 0
	var errs []string

	doc.Find("table.risk-nodes tbody tr").Each(func(i int, row *goquery.Selection) {
		cells := row.Find("td").Map(func(_ int, cell *goquery.Selection) string {
			return strings.TrimSpace(cell.Text())
		})
		if len(cells) < 6 {
			errs = append(errs, fmt.Sprintf("узел, строка %d: ожидается 6 колонок, получено %d", i+1, len(cells)))
			return
		}

		baseProb, err := strconv.ParseFloat(cells[3], 64)
		if err != nil {
			errs = append(errs, fmt.Sprintf("узел %s: базовая вероятность: %v", cells[0], err))
			return
		}
		weight, err := strconv.ParseFloat(cells[5], 64)
		if err != nil {
			errs = append(errs, fmt.Sprintf("узел %s: вес: %v", cells[0], err))
			return
		}

		if err := db.InsertRiskNode(database.RiskNode{
			Code:            cells[0],
			Name:            cells[1],
			Category:        cells[2],
			BaseProbability: baseProb,
			MatchKeyword:    cells[4],
			Weight:          weight,
		}); err != nil {
			errs = append(errs, fmt.Sprintf("узел %s: %v", cells[0], err))
			return
		}
		imported++
	})

	return imported, errs
}

// importEdges разбирает таблицу причинных связей: колонки source, target, weight
func importEdges(db *database.ProcessDB, doc *goquery.Document) (int, []string) {
	imported := 0
	var errs []string

	doc.Find("table.risk-edges tbody tr").Each(func(i int, row *goquery.Selection) {
		cells := row.Find("td").Map(func(_ int, cell *goquery.Selection) string {
			return strings.TrimSpace(cell.Text())
		})
		if len(cells) < 3 {
			errs = append(errs, fmt.Sprintf("связь, строка %d: ожидается 3 колонки, получено %d", i+1, len(cells)))
			return
		}

		weight, err := strconv.ParseFloat(cells[2], 64)
		if err != nil {
			errs = append(errs, fmt.Sprintf("связь %s->%s: вес: %v", cells[0], cells[1], err))
			return
		}

		if err := db.InsertRiskEdge(database.RiskEdge{
			SourceCode: cells[0],
			TargetCode: cells[1],
			Weight:     weight,
		}); err != nil {
			errs = append(errs, fmt.Sprintf("связь %s->%s: %v", cells[0], cells[1], err))
			return
		}
		imported++
	})

	return imported, errs
}
