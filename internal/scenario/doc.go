// Package scenario models what whipper runs and what it learned.
//
// A Scenario is a set of Suites run against one target connection. Each
// Suite is loaded from one YAML file and holds ordered QuerySets, and each
// QuerySet holds ordered Queries. A Query ends with exactly one Result.
//
// Suite files look like:
//
//	queries:
//	  - id: count_users
//	    sql: SELECT count(*) FROM users
//	  - id: orders
//	    queries:
//	      - id: insert_order
//	        sql: INSERT INTO orders VALUES (1)
//	      - id: read_order
//	        sql: SELECT * FROM orders
//
// An entry with sql is a query in a set of its own; an entry with queries is
// a named set whose queries share fail-fast behaviour.
package scenario
