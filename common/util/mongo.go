// Copyright (C) MongoDB, Inc. 2014-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package util

import (
	"fmt"
	"strings"
)

// SplitNamespace splits a namespace path into a database and a collection,
// returned in that order. The split happens on the first '.' so collection
// names may themselves contain dots.
func SplitNamespace(namespace string) (string, string) {
	firstDotIndex := strings.Index(namespace, ".")

	var database string
	var collection string
	if firstDotIndex != -1 {
		database = namespace[:firstDotIndex]
		collection = namespace[firstDotIndex+1:]
	} else {
		database = namespace
	}

	return database, collection
}

// ValidateFullNamespace validates a full mongodb namespace (database +
// collection), returning an error if it is invalid.
func ValidateFullNamespace(namespace string) error {
	database, collection := SplitNamespace(namespace)
	if err := ValidateDBName(database); err != nil {
		return err
	}
	return ValidateCollectionName(collection)
}

// ValidateDBName validates that the provided database name is valid in
// MongoDB.
func ValidateDBName(database string) error {
	if len([]byte(database)) > 63 {
		return fmt.Errorf("database name '%v' is longer than 63 characters", database)
	}

	for _, illegalRune := range "/\\. \"\x00$" {
		if strings.ContainsRune(database, illegalRune) {
			return fmt.Errorf(
				"illegal character '%c' found in database name '%v'",
				illegalRune,
				database,
			)
		}
	}

	if len(database) == 0 {
		return fmt.Errorf("database name cannot be blank")
	}

	return nil
}

// ValidateCollectionName validates that the provided collection name is
// valid in MongoDB, erroring on system collections.
func ValidateCollectionName(collection string) error {
	if strings.HasPrefix(collection, "system.") {
		return fmt.Errorf(
			"collection name '%v' is not allowed to begin with 'system.'",
			collection,
		)
	}

	return ValidateCollectionGrammar(collection)
}

// ValidateCollectionGrammar validates the collection for character and
// length errors without erroring on system collections, for use by
// functionality that manipulates system collections.
func ValidateCollectionGrammar(collection string) error {
	if strings.Contains(collection, "\x00") {
		return fmt.Errorf(
			"collection name '%v' is not allowed to contain the null character",
			collection,
		)
	}

	if strings.Contains(collection, "$") {
		return fmt.Errorf("collection name '%v' is not allowed to contain '$'", collection)
	}

	if len(collection) == 0 {
		return fmt.Errorf("collection name cannot be blank")
	}

	return nil
}

// SplitHostArg returns the hostnames and the replica set name from a --host
// argument of the form "setName/host1,host2".
func SplitHostArg(connString string) ([]string, string) {
	slashIndex := strings.Index(connString, "/")
	setName := ""
	if slashIndex != -1 {
		setName = connString[:slashIndex]
		connString = connString[slashIndex+1:]
	}

	return strings.Split(connString, ","), setName
}

// CreateConnectionAddrs returns a slice of connection addresses for the
// given comma-separated hosts, appending the port to every host that does
// not carry one already.
func CreateConnectionAddrs(host, port string) []string {
	addrs := strings.Split(host, ",")

	if port != "" {
		for index, addr := range addrs {
			if !strings.Contains(addr, ":") {
				addrs[index] = addr + ":" + port
			}
		}
	}

	return addrs
}

// BuildURI assembles a connection string from host and port arguments,
// where the host may carry a "setName/" prefix and a comma-separated
// seedlist.
func BuildURI(host, port string) string {
	seedlist, setname := SplitHostArg(host)

	hosts := make([]string, 0, len(seedlist))
	for _, h := range seedlist {
		if h == "" {
			h = "localhost"
		}
		if port != "" && !strings.Contains(h, ":") {
			h = h + ":" + port
		}
		hosts = append(hosts, h)
	}

	uri := "mongodb://" + strings.Join(hosts, ",") + "/"
	if setname != "" {
		uri += "?replicaSet=" + setname
	}
	return uri
}
