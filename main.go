package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"go-bindex/config"
	"go-bindex/pkg/btree"
	"go-bindex/pkg/customerrors"
	"go-bindex/util/helpers"
	"go-bindex/util/logger"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const usage = `usage:
  bindex create  <index>
  bindex insert  <index> <key> <value>
  bindex search  <index> <key>
  bindex load    <index> <input.csv>
  bindex print   <index>
  bindex extract <index> <output.csv>`

func main() {
	configs := config.New()
	logger.SetLevel(configs.CliConfig.LogLevel)

	if len(os.Args) < 3 {
		fatalf("%s\n", usage)
	}

	var err error
	cmd, fileName := os.Args[1], os.Args[2]

	switch cmd {
	case "create":
		err = cmdCreate(fileName)
	case "insert":
		if len(os.Args) != 5 {
			fatalf("%s\n", usage)
		}
		err = cmdInsert(fileName, os.Args[3], os.Args[4])
	case "search":
		if len(os.Args) != 4 {
			fatalf("%s\n", usage)
		}
		err = cmdSearch(fileName, os.Args[3])
	case "load":
		if len(os.Args) != 4 {
			fatalf("%s\n", usage)
		}
		err = cmdLoad(configs.CliConfig, fileName, os.Args[3])
	case "print":
		err = cmdPrint(fileName)
	case "extract":
		if len(os.Args) != 4 {
			fatalf("%s\n", usage)
		}
		err = cmdExtract(configs.CliConfig, fileName, os.Args[3])
	default:
		fatalf("unknown command '%s'\n%s\n", cmd, usage)
	}

	if err != nil {
		fatal(err)
	}
}

func cmdCreate(fileName string) error {
	tree, err := btree.Create(fileName)
	if err != nil {
		return err
	}

	logger.L.Infof("created index file '%s'", fileName)
	return tree.Close()
}

func cmdInsert(fileName, keyArg, valArg string) error {
	key, err := parseUint(keyArg)
	if err != nil {
		return err
	}
	val, err := parseUint(valArg)
	if err != nil {
		return err
	}

	tree, err := btree.Open(fileName)
	if err != nil {
		return err
	}
	defer tree.Close()

	if err := tree.Put(key, val); err != nil {
		return err
	}

	logger.L.Infof("inserted %d -> %d", key, val)
	return nil
}

func cmdSearch(fileName, keyArg string) error {
	key, err := parseUint(keyArg)
	if err != nil {
		return err
	}

	tree, err := btree.Open(fileName)
	if err != nil {
		return err
	}
	defer tree.Close()

	val, found, err := tree.Get(key)
	if err != nil {
		return err
	} else if !found {
		return errors.Wrapf(customerrors.ErrKeyNotFound, "%d", key)
	}

	fmt.Printf("%d %d\n", key, val)
	return nil
}

func cmdLoad(configs *config.CliConfig, fileName, csvName string) error {
	rows, err := readPairs(configs, csvName)
	if err != nil {
		return err
	}

	tree, err := btree.Open(fileName)
	if err != nil {
		return err
	}
	defer tree.Close()

	inserted, skipped := 0, 0
	for from := 0; from < len(rows); from += configs.LoadBatch {
		to := helpers.Min(from+configs.LoadBatch, len(rows))
		for _, row := range rows[from:to] {
			err := tree.Put(row[0], row[1])
			if errors.Is(err, customerrors.ErrKeyExists) {
				logger.L.Warnf("skipping duplicate key %d", row[0])
				skipped++
				continue
			} else if err != nil {
				return err
			}
			inserted++
		}
		logger.L.Debugf("loaded %d/%d rows", to, len(rows))
	}

	logger.L.Infof("loaded '%s': %d inserted, %d skipped", csvName, inserted, skipped)
	return nil
}

func cmdPrint(fileName string) error {
	tree, err := btree.Open(fileName)
	if err != nil {
		return err
	}
	defer tree.Close()

	if logger.L.IsLevelEnabled(logrus.DebugLevel) {
		tree.Print()
	}

	return tree.Scan(func(key, val uint64) (bool, error) {
		fmt.Printf("%d %d\n", key, val)
		return false, nil
	})
}

func cmdExtract(configs *config.CliConfig, fileName, csvName string) error {
	tree, err := btree.Open(fileName)
	if err != nil {
		return err
	}
	defer tree.Close()

	out, err := os.OpenFile(csvName, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return errors.Wrap(err, "failed to create output file")
	}
	defer out.Close()

	w := csv.NewWriter(out)
	w.Comma = configs.CsvComma
	count := 0

	err = tree.Scan(func(key, val uint64) (bool, error) {
		count++
		return false, w.Write([]string{
			strconv.FormatUint(key, 10),
			strconv.FormatUint(val, 10),
		})
	})
	if err != nil {
		return err
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return errors.Wrap(err, "failed to flush output file")
	}

	logger.L.Infof("extracted %d pairs to '%s'", count, csvName)
	return nil
}

// readPairs reads the whole CSV file as key,value rows of base-10
// unsigned integers.
func readPairs(configs *config.CliConfig, csvName string) ([][2]uint64, error) {
	f, err := os.Open(csvName)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open csv file")
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = configs.CsvComma
	r.FieldsPerRecord = 2

	rows := [][2]uint64{}
	for {
		record, err := r.Read()
		if err == io.EOF {
			return rows, nil
		} else if err != nil {
			return nil, errors.Wrap(err, "failed to read csv file")
		}

		key, err := parseUint(record[0])
		if err != nil {
			return nil, err
		}
		val, err := parseUint(record[1])
		if err != nil {
			return nil, err
		}

		rows = append(rows, [2]uint64{key, val})
	}
}

func parseUint(s string) (uint64, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	return v, errors.Wrapf(err, "invalid unsigned integer '%s'", s)
}

func fatal(val interface{}) {
	logger.L.Error(val)
	os.Exit(1)
}

func fatalf(format string, values ...interface{}) {
	fmt.Printf(format, values...)
	os.Exit(1)
}
