package errors

import (
	stdErrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stripe/stripe-go/v84"
)

// LogFields flattens err into structured log fields: the typed code, the unwrap
// chain, and any Postgres or Stripe diagnostics found along it.
func LogFields(err error) map[string]any {
	if err == nil {
		return map[string]any{}
	}
	fields := map[string]any{"error_code": CodeOf(err)}

	var chain []string
	for e := err; e != nil; e = stdErrors.Unwrap(e) {
		chain = append(chain, fmt.Sprintf("%T", e))
	}
	fields["error_chain"] = chain

	var pgErr *pgconn.PgError
	var pqErr *pq.Error
	switch {
	case stdErrors.As(err, &pgErr):
		putNonEmpty(fields, "pg_code", pgErr.Code)
		putNonEmpty(fields, "pg_constraint", pgErr.ConstraintName)
		putNonEmpty(fields, "pg_table", pgErr.TableName)
		putNonEmpty(fields, "pg_detail", pgErr.Detail)
	case stdErrors.As(err, &pqErr):
		putNonEmpty(fields, "pg_code", string(pqErr.Code))
		putNonEmpty(fields, "pg_constraint", pqErr.Constraint)
		putNonEmpty(fields, "pg_table", pqErr.Table)
		putNonEmpty(fields, "pg_detail", pqErr.Detail)
	}

	var stripeErr *stripe.Error
	if stdErrors.As(err, &stripeErr) {
		putNonEmpty(fields, "stripe_type", string(stripeErr.Type))
		putNonEmpty(fields, "stripe_code", string(stripeErr.Code))
		putNonEmpty(fields, "stripe_decline_code", string(stripeErr.DeclineCode))
		putNonEmpty(fields, "stripe_request_id", stripeErr.RequestID)
		if stripeErr.HTTPStatusCode != 0 {
			fields["stripe_status"] = stripeErr.HTTPStatusCode
		}
	}
	return fields
}

func putNonEmpty(fields map[string]any, key, value string) {
	if value != "" {
		fields[key] = value
	}
}
