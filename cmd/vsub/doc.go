// Command vsub generates SRT subtitles from a video's audio track.
//
// The root command runs the pipeline for one source file. Subcommands inspect
// and maintain the per-source workspaces and run history:
//
//	vsub movie.mkv                 transcribe to movie.srt
//	vsub status movie.mkv          show which stages are cached
//	vsub history                   list recent runs
//	vsub clean movie.mkv           discard a source's workspace
//	vsub check                     verify external tools and directories
//	vsub logs -f                   follow the log file
//	vsub config init               write a sample configuration
//	vsub config show               print the effective configuration
package main
