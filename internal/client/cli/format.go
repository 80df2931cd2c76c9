package cli

import (
	"strings"
	"text/tabwriter"

	"github.com/dmitrijs2005/passshare/internal/client/models"
)

func formatFiles(list []models.SharedFile) string {
	if len(list) == 0 {
		return "No files shared yet"
	}

	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	_, _ = w.Write([]byte("ID\tNAME\n"))
	for _, f := range list {
		_, _ = w.Write([]byte(f.ID.String() + "\t" + f.FileName + "\n"))
	}
	_ = w.Flush()
	return strings.TrimRight(b.String(), "\n")
}
