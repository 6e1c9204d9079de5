// Package prompt builds every prompt an iteration controller needs:
// system instructions composed tier-by-tier, the investigation/synthesis
// user message, and the strategy-specific format guide. Stateless and
// thread-safe — every method takes all the state it needs as parameters.
package prompt

// reactFormatOpener is the investigation-specific opening for ReAct
// instructions (spec §4.7: "Thought: ... Action: server.tool Action
// Input: ...").
const reactFormatOpener = `You are an SRE agent using the ReAct framework to analyze incidents. Reason step by step, act with tools, observe results, and repeat until you identify root cause and resolution steps.`

const reactFormatBody = `REQUIRED FORMAT:

Question: [the incident question]
Thought: [your step-by-step reasoning]
Action: [tool name from available tools]
Action Input: [parameters as key: value pairs]

Stop immediately after Action Input. The system provides Observations.

Continue the cycle. Conclude when you have sufficient information:

Thought: [final reasoning]
Final Answer: [complete structured response]

CRITICAL RULES:
1. Always use colons after headers: "Thought:", "Action:", "Action Input:"
2. Start each section on a NEW LINE (never continue on the same line as previous text)
3. Stop after Action Input — never generate fake Observations
4. Parameters: one per line for multiple values, or inline for a single value
5. Conclude when you have actionable insights (perfect information not required)

PARAMETER FORMATS:

Multiple parameters:
Action Input: apiVersion: v1
kind: Namespace
name: example-namespace

Single parameter:
Action Input: namespace: default

EXAMPLE CYCLE:

Question: Why is namespace 'example-namespace' stuck in terminating state?

Thought: I need to check the namespace status first to identify any blocking resources or finalizers.

Action: kubernetes-server.resources_get
Action Input: apiVersion: v1
kind: Namespace
name: example-namespace

[System provides: Observation: {"status": {"phase": "Terminating", "finalizers": ["kubernetes"]}}]

Thought: A finalizer is blocking deletion. No pods remain in the namespace, so this is an orphaned finalizer.

Final Answer:
**Root Cause:** Orphaned finalizer blocking namespace deletion after all resources were cleaned up.

**Resolution Steps:**
1. Remove the finalizer manually.
2. Verify deletion completes.

**Preventive Measures:** Ensure cleanup scripts remove finalizers when deleting namespaces programmatically.`

var reactFormatInstructions = reactFormatOpener + "\n\n" + reactFormatBody

// analysisTask is the investigation task instruction appended to the user
// message.
const analysisTask = `## Your Task
Use the available tools to investigate this alert and provide:
1. Root cause analysis
2. Current system state assessment
3. Specific remediation steps for human operators
4. Prevention recommendations

Be thorough in your investigation before providing the final answer.`

const synthesisTask = `Synthesize the investigation results and provide your comprehensive analysis.`

// forcedConclusionTemplate is the base template for forced-conclusion
// prompts (spec §4.7 "force conclusion"). %d = iteration count, %s =
// strategy-specific format instructions.
const forcedConclusionTemplate = `You have reached the investigation iteration limit (%d iterations).

Please conclude your investigation by answering the original question based on what you've discovered.

Conclusion guidance:
- Use the data and observations you've already gathered
- Perfect information is not required — provide actionable insights from available findings
- If gaps remain, clearly state what you couldn't determine and why
- Focus on practical next steps based on current knowledge

%s`

const reactForcedConclusionFormat = `CRITICAL: you MUST format your response using the ReAct format:

Thought: [your final reasoning about what you've discovered]
Final Answer: [complete structured response]

Do not call any more tools. Provide your Final Answer now.`

const nativeThinkingForcedConclusionFormat = `Provide your complete final analysis as plain text now. Do not request any more tool calls.`

const mcpSummarizationSystemTemplate = `You are summarizing a tool result from the %q server's %q tool so it fits
within the investigation conversation. Preserve every concrete fact, number,
name, and error message; omit only repetitive or irrelevant boilerplate.
Target at most %d tokens.`

const mcpSummarizationUserTemplate = `## Investigation so far

%s

## Tool: %s.%s

%s

Summarize the tool result above for continued investigation.`

const executiveSummarySystemPrompt = `You are an expert Site Reliability Engineer assistant that creates concise executive summaries of incident analyses for alert notifications. Focus on clarity, brevity, and actionable information.`

// executiveSummaryUserTemplate: %s = final analysis text.
const executiveSummaryUserTemplate = `Generate a brief executive summary of this incident analysis.

CRITICAL RULES:
- Only summarize what is EXPLICITLY stated in the analysis
- Do NOT infer future actions or recommendations not mentioned
- Do NOT add your own conclusions
- Focus on: what happened, current status, and ONLY stated next steps

Analysis to summarize:

=================================================================================
%s
=================================================================================

Executive Summary (facts only):`
