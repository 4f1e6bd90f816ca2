// Package rsyscall dispatches the guest's ECALL trap to host operations,
// following the Linux RISC-V syscall ABI: number in a7, arguments in
// a0..a5, result (or -errno) written back into a0.
package rsyscall

// Linux generic syscall numbers, shared by riscv64 and arm64.
const (
	sysGetcwd             = 17
	sysFcntl              = 25
	sysIoctl              = 29
	sysMkdirat            = 34
	sysUnlinkat           = 35
	sysRenameat           = 38
	sysFaccessat          = 48
	sysChdir              = 49
	sysOpenat             = 56
	sysClose              = 57
	sysGetdents64         = 61
	sysLseek              = 62
	sysRead               = 63
	sysWrite              = 64
	sysWritev             = 66
	sysPselect6           = 72
	sysPpollTime32        = 73
	sysReadlinkat         = 78
	sysNewfstatat         = 79
	sysNewfstat           = 80
	sysFsync              = 82
	sysFdatasync          = 83
	sysExit               = 93
	sysExitGroup          = 94
	sysSetTidAddress      = 96
	sysFutex              = 98
	sysSetRobustList      = 99
	sysClockGettime       = 113
	sysClockNanosleep     = 115
	sysSchedSetaffinity   = 122
	sysSchedGetaffinity   = 123
	sysSchedYield         = 124
	sysTgkill             = 131
	sysSignalstack        = 132
	sysSigaction          = 134
	sysRtSigprocmask      = 135
	sysTimes              = 153
	sysUname              = 160
	sysGetrusage          = 165
	sysPrctl              = 167
	sysGettimeofday       = 169
	sysGetpid             = 172
	sysGetuid             = 174
	sysGeteuid            = 175
	sysGetgid             = 176
	sysGetegid            = 177
	sysGettid             = 178
	sysSysinfo            = 179
	sysBrk                = 214
	sysMunmap             = 215
	sysMremap             = 216
	sysClone              = 220
	sysMmap               = 222
	sysMprotect           = 226
	sysMadvise            = 233
	sysRiscvFlushIcache   = 259
	sysPrlimit64          = 261
	sysRenameat2          = 276
	sysGetrandom          = 278
	sysStatx              = 291
	sysRseq               = 293

	// Pre-generic-ABI numbers some older riscv64 runtimes still emit.
	sysOpenLegacy   = 1024
	sysUnlinkLegacy = 1026

	// Emulator-private numbers in the 0x2000 range: they let test
	// programs drive the emulator without a C runtime.
	privRand              = 0x2000
	privPrintDouble       = 0x2001
	privTraceInstructions = 0x2002
	privExit              = 0x2003
	privPrintText         = 0x2004
	privGetDatetime       = 0x2005
	privPrintInt64        = 0x2006
	privPrintChar         = 0x2007
)

// errno values the dispatcher returns as -errno in a0. Only the subset
// referenced by the handlers below.
const (
	eperm  = 1
	enoent = 2
	eio    = 5
	ebadf  = 9
	eagain = 11
	enomem = 12
	eacces = 13
	efault = 14
	eexist = 17
	enotdir = 20
	einval = 22
	enosys = 38
)
