// Package report renders the sliding window as PNG line charts and exports
// it, with the latest classification, as a formatted XLSX workbook.
package report
