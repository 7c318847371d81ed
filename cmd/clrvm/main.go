// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"os"

	clr "github.com/saferwall/clrvm"
	"github.com/spf13/cobra"
)

var (
	runtimeDir       string
	strictVersioning bool
	verifyStrongName bool

	dumpTables bool
	dumpAll    bool
)

func prettyPrint(buf []byte) string {
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, buf, "", "\t"); err != nil {
		log.Println("JSON parse error:", err)
		return string(buf)
	}
	return pretty.String()
}

func run(cmd *cobra.Command, args []string) {
	entryPath := args[0]
	cfg := clr.Config{
		RuntimeDir:       runtimeDir,
		StrictVersioning: strictVersioning,
		VerifyStrongName: verifyStrongName,
	}
	if err := clr.Run(entryPath, cfg); err != nil {
		fmt.Fprintln(os.Stderr, "execution failed:", err)
		os.Exit(1)
	}
}

func dump(cmd *cobra.Command, args []string) {
	path := args[0]
	asm, err := clr.LoadAssembly(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load failed:", err)
		os.Exit(1)
	}

	wantTables, _ := cmd.Flags().GetBool("tables")
	wantAll, _ := cmd.Flags().GetBool("all")

	name, _ := json.Marshal(asm.Name)
	fmt.Println(prettyPrint(name))

	if wantTables || wantAll {
		typeDefs, _ := json.Marshal(asm.TypeDefs)
		methods, _ := json.Marshal(asm.Methods)
		fields, _ := json.Marshal(asm.Fields)
		fmt.Println(prettyPrint(typeDefs))
		fmt.Println(prettyPrint(methods))
		fmt.Println(prettyPrint(fields))
	}

	if wantAll {
		tables, _ := json.Marshal(asm.File.CLR.MetadataTables)
		fmt.Println(prettyPrint(tables))
	}
}

func main() {
	var rootCmd = &cobra.Command{
		Use:   "clrvm",
		Short: "A minimal CLI interpreter",
		Long:  "A stack-based virtual machine for CLI/.NET assemblies, built for inspection and experimentation by Saferwall",
	}

	var versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("You are using version 0.0.1")
		},
	}

	var runCmd = &cobra.Command{
		Use:   "run <assembly>",
		Short: "Executes an assembly's entry method",
		Args:  cobra.ExactArgs(1),
		Run:   run,
	}

	var dumpCmd = &cobra.Command{
		Use:   "dump <assembly>",
		Short: "Dumps an assembly's decoded metadata without executing it",
		Args:  cobra.ExactArgs(1),
		Run:   dump,
	}

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(dumpCmd)

	runCmd.Flags().StringVarP(&runtimeDir, "runtime-dir", "r", ".", "directory referenced assemblies are resolved against")
	runCmd.Flags().BoolVarP(&strictVersioning, "strict-versioning", "", false, "require AssemblyRef version match on resolution")
	runCmd.Flags().BoolVarP(&verifyStrongName, "verify-strong-name", "", false, "best-effort verify the strong-name signature before running")

	dumpCmd.Flags().BoolVarP(&dumpTables, "tables", "", false, "dump TypeDef/Method/Field tables")
	dumpCmd.Flags().BoolVarP(&dumpAll, "all", "", false, "dump everything")

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
