package run

import (
	"path/filepath"
	"strings"

	"fenixrpa/internal/dataset"
	"fenixrpa/internal/logging"
	"fenixrpa/internal/reconcile"
)

// ExportPath derives the reconciled copy's name from the source path:
// ups.xlsx becomes ups_atualizado.xlsx.
func ExportPath(src string) string {
	ext := filepath.Ext(src)
	return strings.TrimSuffix(src, ext) + "_atualizado" + ext
}

// Export marks ids as filed in t and writes the table to out in the
// source's format. An empty out leaves the table unsaved.
func Export(t *dataset.Table, ids []string, out string) (reconcile.Report, error) {
	rep := reconcile.UpdateStatus(t, ids, t.FlagYes())
	if out == "" {
		return rep, nil
	}
	if err := t.Save(out); err != nil {
		return rep, err
	}
	logging.Get(logging.CategoryRun).Info("reconciled table written to %s (%d rows changed)", out, rep.Changed)
	return rep, nil
}
