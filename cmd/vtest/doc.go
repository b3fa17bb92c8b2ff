// Copyright 2024 The Vanadium Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// This file was auto-generated via go generate.
// DO NOT UPDATE MANUALLY

/*
Command vtest runs the conformance and performance tests of a V2X secure
element against an in-process emulated engine. Tests are numbered with six
digits: a two digit suite, a two digit requirement and a two digit test.

Usage:
   vtest [flags] <command>

The vtest commands are:
   run         Runs tests
   list        Lists tests
   probe       Reports the detected hardware acceleration
   config      Prints the effective configuration
   help        Display help for commands or topics

Vtest run - Runs tests

Runs the selected tests in test number order and prints a results table. The
exit code is 0 if every test passed, 1 if any test failed and 32 if any test
was inconclusive or no test was selected.

Usage:
   vtest run [flags] [<suite> | <test> | <first> <last>]

With no arguments every test is run. A two digit <suite> runs the tests of that
suite, a single <test> number runs that test and <first> <last> runs the tests
numbered in that inclusive range.

The vtest run flags are:
 -ecc.ping-wait=1ms
   Time allowed for ping responses
 -ecc.verify-wait=10ms
   Time allowed for verification responses
 -emu.keygen-latency=0s
   Simulated duration of a key pair generation
 -emu.queue-depth=64
   Maximum number of queued dispatcher requests
 -emu.sign-latency=0s
   Simulated duration of a signature generation
 -emu.verify-latency=0s
   Simulated duration of a signature verification
 -keyinject.passphrase=vtest
   Passphrase used to encrypt injected keys
 -keyinject.slot=0
   Runtime key slot to inject into
 -log-level=0
   Verbosity of the log written to stderr.
 -perf.gen-count=400
   Number of signatures in a rate test
 -perf.gen-latency-count=1000
   Number of signatures in a latency test
 -perf.gen-latency-hw=10
   Maximum signing latency in milliseconds with hardware acceleration
 -perf.gen-latency-sw=20
   Maximum signing latency in milliseconds without hardware acceleration
 -perf.gen-rate-hw=200
   Minimum signatures per second with hardware acceleration
 -perf.gen-rate-sw=100
   Minimum signatures per second without hardware acceleration
 -perf.grace=10ms
   Time allowed for outstanding operations to complete
 -perf.hardware=auto
   Whether hardware acceleration is present: yes, no or auto
 -perf.keys=5
   Number of keys the test data is spread over
 -perf.load-streams=1
   Number of asynchronous load streams
 -perf.sustained=10s
   Duration of the sustained verification rate test
 -perf.timeout=5m0s
   Deadline for each performance test
 -perf.verify-count=5000
   Number of verifications in a rate test
 -perf.verify-latency-count=1000
   Number of verifications in a latency test
 -perf.verify-latency-hw=10
   Maximum verification latency in milliseconds with hardware acceleration
 -perf.verify-latency-sw=20
   Maximum verification latency in milliseconds without hardware acceleration
 -perf.verify-rate-hw=2500
   Minimum verifications per second with hardware acceleration
 -perf.verify-rate-sw=1000
   Minimum verifications per second without hardware acceleration
 -quiet=false
   If true, only the results table is written.

Vtest list - Lists tests

Lists the selected tests by number and name.

Usage:
   vtest list [flags] [<suite> | <test> | <first> <last>]

The arguments select tests as for the run command.

Vtest probe - Reports the detected hardware acceleration

Reports whether hardware acceleration is present, which selects the thresholds
the performance tests are checked against.

Usage:
   vtest probe [flags]

The vtest probe flags are the perf, emu, ecc and keyinject flags of the run
command and -log-level.

Vtest config - Prints the effective configuration

Prints the configuration the tests would run with, after flags are applied.

Usage:
   vtest config [flags]

The vtest config flags are the perf, emu, ecc and keyinject flags of the run
command and -log-level.

Vtest help - Display help for commands or topics

Help with no args displays the usage of the parent command.

Help with args displays the usage of the specified sub-command or help topic.

"help ..." recursively displays help for all commands and topics.

Usage:
   vtest help [flags] [command/topic ...]

[command/topic ...] optionally identifies a specific sub-command or help topic.
*/
package main
