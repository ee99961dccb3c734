// Copyright (C) MongoDB, Inc. 2014-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package mongomirror

import (
	"github.com/mitchellh/go-wordwrap"
	"github.com/mongodb-labs/mongomirror/common/options"
)

var Usage = `<options> <command>

Mirror collections from a source MongoDB deployment into a target document store.

Commands:
  migrate   copy the existing documents for every configured mapping, then exit
  live      migrate if needed, then tail the source change streams until terminated

Sources, targets, and collection mappings are described by the file given with -f/--file.`

const commandsDescription = "The migrate command copies every configured " +
	"collection into its target once and exits. The live command performs the " +
	"same copy for mappings that have never synced, then tails the source " +
	"change streams and applies inserts, updates, and deletes to the target " +
	"until the process is terminated. Restarting in live mode resumes from " +
	"the last saved checkpoint."

// CommandHelp returns the long-form command summary wrapped for terminal
// output.
func CommandHelp() string {
	return wordwrap.WrapString(commandsDescription, 80)
}

// Options contains all the possible options used to configure mongomirror.
type Options struct {
	*options.ToolOptions
	*MirrorOptions
	ParsedArgs []string
}

// MirrorOptions defines the set of options that control a mirroring run.
type MirrorOptions struct {
	ConfigPath          string `long:"file" short:"f" value-name:"<job-file>" description:"path of a YAML file describing sources, targets, and collection mappings"`
	AutoResync          bool   `long:"autoResync" description:"on an expired resume position, discard the mapping's checkpoint and run a full resync instead of stopping"`
	CheckpointPath      string `long:"checkpointPath" value-name:"<path>" description:"override the checkpoint file location from the job file (sqlite backend only)"`
	DestinationPassword string `long:"destinationPassword" value-name:"<password>" description:"password for authentication on the destination store"`
}

// Name returns a human-readable group name for mirroring options.
func (*MirrorOptions) Name() string {
	return "mirror"
}

// SetDestinationPassword merges a destination password supplied through the
// --config secrets file.
func (mo *MirrorOptions) SetDestinationPassword(password string) {
	mo.DestinationPassword = password
}

// ParseOptions reads the command line arguments and converts them into
// options used to configure a MongoMirror instance.
func ParseOptions(rawArgs []string, versionStr, gitCommit string) (Options, error) {
	opts := options.New("mongomirror", versionStr, gitCommit, Usage,
		options.EnabledOptions{})

	mirrorOpts := &MirrorOptions{}
	opts.AddOptions(mirrorOpts)
	// Source and target connections come from the job file, so the URI
	// option group is disabled; register explicitly so the --config secrets
	// file can still supply --destinationPassword.
	opts.AddToExtraOptionsRegistry(mirrorOpts)

	extraArgs, err := opts.ParseArgs(rawArgs)
	if err != nil {
		return Options{}, err
	}

	return Options{opts, mirrorOpts, extraArgs}, nil
}
