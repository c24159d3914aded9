// Package repository implements the Postgres stores behind the tracker:
// tasks (with versioned writes), automation rules (with atomic firing
// stats), projects, users, and the activity feed.
package repository

import sq "github.com/Masterminds/squirrel"

// psql builds every query in this package with $n placeholders.
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
