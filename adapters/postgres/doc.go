/*
Package postgres runs projections inside PostgreSQL transactions. Each batch delivered by a
source is projected with the transaction as the connection (a *sqlx.Tx over the pgx driver when
using DB) and committed only when every handler succeeded.
*/
package postgres
