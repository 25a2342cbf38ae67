package sqlgen

import (
	"fmt"
	"strings"

	"github.com/cfeenstra67/sqlauthz/internal/catalog"
	"github.com/cfeenstra67/sqlauthz/internal/resolve"
	"github.com/cfeenstra67/sqlauthz/internal/util"
)

// grantObjectKeyword maps object kinds to the keyword used between ON and
// the object name in GRANT statements. Views use the TABLE form.
var grantObjectKeyword = map[catalog.ObjectKind]string{
	catalog.KindSchema:    "SCHEMA",
	catalog.KindTable:     "TABLE",
	catalog.KindView:      "TABLE",
	catalog.KindFunction:  "FUNCTION",
	catalog.KindProcedure: "PROCEDURE",
	catalog.KindSequence:  "SEQUENCE",
}

// RenderGrant produces the GRANT statement for a single permission. Table
// permissions with a non-trivial column clause carry a column list; the
// clause is evaluated against the table's current columns.
func RenderGrant(p resolve.Permission, cat *catalog.Catalog) (string, error) {
	keyword, ok := grantObjectKeyword[p.Kind]
	if !ok {
		return "", fmt.Errorf("cannot render grant for object kind %q", p.Kind)
	}

	object := util.QualifyName(p.Object.Schema, p.Object.Name)
	actor := util.QuoteIdentifier(p.Actor.Name)

	if p.Kind == catalog.KindTable && p.ColumnClause != nil {
		tbl, ok := cat.LookupTable(p.Object)
		if !ok {
			return "", fmt.Errorf("table %s not found in catalog snapshot", p.Object)
		}
		columns, err := EvaluateColumnClause(p.ColumnClause, tbl.Columns)
		if err != nil {
			return "", err
		}
		if columns != nil {
			// A clause can select zero columns, for example when the
			// table changed since the rules were written. There is no
			// empty-column-list GRANT, so the permission renders to
			// nothing.
			if len(columns) == 0 {
				return "", nil
			}
			return fmt.Sprintf(
				"GRANT %s (%s) ON TABLE %s TO %s;",
				p.Privilege, strings.Join(util.QuoteIdentifiers(columns), ", "), object, actor,
			), nil
		}
	}

	return fmt.Sprintf("GRANT %s ON %s %s TO %s;", p.Privilege, keyword, object, actor), nil
}
