package demo

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/canonical/beanmeta"
)

type Place struct {
	Town       string `db:"l.town_name"`
	Population int    `db:"l.population"`
}

type Person struct {
	beanmeta.Table `tables:"people p join location l on p.home_town = l.town_name" inherit:"field"`
	Place

	Name   string `db:"p.name"`
	Height int    `db:"p.height_cm"`
	Taller bool   `db:"p.height_cm > :height" cond:"false"`
}

// selectAll builds a select of every field of meta.
func selectAll(meta *beanmeta.BeanMeta) string {
	var columns []string
	for _, f := range meta.Fields() {
		if f.AppliesTo(beanmeta.OpList) {
			columns = append(columns, f.Snippet().SQL+" AS "+f.Alias())
		}
	}
	return "SELECT " + strings.Join(columns, ", ") + " FROM " + meta.Tables().SQL
}

func example() error {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return err
	}
	defer db.Close()

	_, err = db.Exec(`
		CREATE TABLE people (
			name text,
			height_cm integer,
			home_town text
		);
		CREATE TABLE location (
			town_name text,
			population integer
		);
		INSERT INTO people VALUES
			('Jim', 150, 'Kabul'), ('Saba', 162, 'Berlin'), ('Dave', 169, 'Brasília'),
			('Sophie', 174, 'Berlin'), ('Kiri', 168, 'Cape Town');
		INSERT INTO location VALUES
			('Kabul', 13000000), ('Berlin', 3677472), ('Brasília', 3039444), ('Cape Town', 4710000);`)
	if err != nil {
		return err
	}

	meta, err := beanmeta.Resolve(Person{})
	if err != nil {
		return err
	}
	for _, f := range meta.Fields() {
		fmt.Printf("%s AS %s\n", f.Snippet(), f.Alias())
	}

	// Compare everybody with Jim.
	rows, err := db.Query(selectAll(meta)+" ORDER BY p.height_cm", 150)
	if err != nil {
		return err
	}
	defer rows.Close()
	columns, err := rows.Columns()
	if err != nil {
		return err
	}
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return err
		}
		var p Person
		for i, column := range columns {
			f, ok := meta.FieldByAlias(column)
			if !ok {
				return fmt.Errorf("no field selected as %q", column)
			}
			if err := f.Set(&p, values[i]); err != nil {
				return err
			}
		}
		if p.Taller {
			fmt.Printf("%s from %s (population %d) is taller than Jim.\n", p.Name, p.Town, p.Population)
		}
	}
	return rows.Err()
}

func main() {
	err := example()
	if err != nil {
		panic(err)
	}
}
